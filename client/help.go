package client

import (
	"context"

	"github.com/socialvoid/svclient/rpc"
)

// HelpMethods are the methods of the help namespace. They do not require a
// session.
type HelpMethods struct {
	c rpc.Caller
}

func (hm *HelpMethods) document(ctx context.Context, method string) (*rpc.HelpDocument, error) {
	var doc rpc.HelpDocument
	if err := hm.c.Call(ctx, method, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// TermsOfService returns the current terms of service document.
func (hm *HelpMethods) TermsOfService(ctx context.Context) (*rpc.HelpDocument, error) {
	return hm.document(ctx, rpc.MethodHelpGetTermsOfService)
}

// PrivacyPolicy returns the current privacy policy document.
func (hm *HelpMethods) PrivacyPolicy(ctx context.Context) (*rpc.HelpDocument, error) {
	return hm.document(ctx, rpc.MethodHelpGetPrivacyPolicy)
}

// CommunityGuidelines returns the current community guidelines document.
func (hm *HelpMethods) CommunityGuidelines(ctx context.Context) (*rpc.HelpDocument, error) {
	return hm.document(ctx, rpc.MethodHelpGetCommunityGuidelines)
}

// ServerInformation returns information about the server, including its
// CDN endpoint and limits.
func (hm *HelpMethods) ServerInformation(ctx context.Context) (*rpc.ServerInformation, error) {
	var info rpc.ServerInformation
	if err := hm.c.Call(ctx, rpc.MethodHelpGetServerInformation, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
