package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/socialvoid/svclient/challenge"
	"github.com/socialvoid/svclient/rpc"
)

const (
	testUsername = "alice"
	testPassword = "correct horse"
	testTOSID    = "tos-1"
)

type fakeSession struct {
	publicHash    string
	privateHash   string
	challenge     string
	authenticated bool
	expired       bool
}

// fakeServer implements the session and help methods of the JSON-RPC server
// and the CDN endpoint, verifying challenge answers like the real server.
type fakeServer struct {
	t   *testing.T
	srv *httptest.Server

	mtx       sync.Mutex
	sessions  map[string]*fakeSession
	nextID    int
	calls     map[string]int
	documents map[string][]byte
	noCDN     bool
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{
		t:         t,
		sessions:  make(map[string]*fakeSession),
		calls:     make(map[string]int),
		documents: make(map[string][]byte),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", fs.handleRPC)
	mux.HandleFunc("/cdn", fs.handleCDN)
	fs.srv = httptest.NewServer(mux)
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) rpcURL() string { return fs.srv.URL + "/rpc" }
func (fs *fakeServer) cdnURL() string { return fs.srv.URL + "/cdn" }

func (fs *fakeServer) callCount(method string) int {
	fs.mtx.Lock()
	defer fs.mtx.Unlock()
	return fs.calls[method]
}

// expireAll marks every session as expired.
func (fs *fakeServer) expireAll() {
	fs.mtx.Lock()
	for _, s := range fs.sessions {
		s.expired = true
	}
	fs.mtx.Unlock()
}

func rpcErr(code rpc.ErrorCode) *rpc.Error {
	return &rpc.Error{Code: code, Message: code.Error()}
}

// verify checks an identification. Must be called with the mutex held.
func (fs *fakeServer) verify(id rpc.SessionIdentification) (*fakeSession, *rpc.Error) {
	s := fs.sessions[id.SessionID]
	switch {
	case s == nil:
		return nil, rpcErr(rpc.ErrSessionNotFound)
	case s.expired:
		return nil, rpcErr(rpc.ErrSessionExpired)
	case s.publicHash != id.ClientPublicHash:
		return nil, rpcErr(rpc.ErrBadSessionChallengeAnswer)
	}
	now := time.Now()
	for _, t := range []time.Time{now, now.Add(-challenge.TimeStep)} {
		answer, err := challenge.Answer(s.privateHash, s.challenge, t)
		if err == nil && answer == id.ChallengeAnswer {
			return s, nil
		}
	}
	return nil, rpcErr(rpc.ErrBadSessionChallengeAnswer)
}

func (fs *fakeServer) dispatch(method string, params json.RawMessage) (interface{}, *rpc.Error) {
	fs.mtx.Lock()
	defer fs.mtx.Unlock()
	fs.calls[method]++

	decode := func(v interface{}) *rpc.Error {
		if err := json.Unmarshal(params, v); err != nil {
			return rpcErr(rpc.ErrInvalidParams)
		}
		return nil
	}

	switch method {
	case rpc.MethodSessionCreate:
		var p rpc.CreateSessionParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		if p.PublicHash == "" || p.PrivateHash == "" {
			return nil, rpcErr(rpc.ErrInvalidClientPublicHash)
		}
		fs.nextID++
		id := fmt.Sprintf("%08d-aaaa-bbbb-cccc", fs.nextID)
		s := &fakeSession{
			publicHash:  p.PublicHash,
			privateHash: p.PrivateHash,
			challenge:   "JBSWY3DPEHPK3PXP",
		}
		fs.sessions[id] = s
		return rpc.SessionEstablished{ID: id, Challenge: s.challenge}, nil

	case rpc.MethodSessionGet:
		var p rpc.SessionParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		s, err := fs.verify(p.SessionIdentification)
		if err != nil {
			return nil, err
		}
		return rpc.Session{
			ID:            p.SessionIdentification.SessionID,
			Authenticated: s.authenticated,
			Flags:         []string{},
		}, nil

	case rpc.MethodSessionAuthenticateUser:
		var p rpc.AuthenticateUserParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		s, err := fs.verify(p.SessionIdentification)
		if err != nil {
			return nil, err
		}
		if s.authenticated {
			return nil, rpcErr(rpc.ErrAlreadyAuthenticated)
		}
		if p.Username != testUsername || p.Password != testPassword {
			return nil, rpcErr(rpc.ErrIncorrectLoginCredentials)
		}
		s.authenticated = true
		return true, nil

	case rpc.MethodSessionLogout:
		var p rpc.SessionParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		s, err := fs.verify(p.SessionIdentification)
		if err != nil {
			return nil, err
		}
		s.authenticated = false
		return true, nil

	case rpc.MethodSessionRegister:
		var p rpc.RegisterParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		if _, err := fs.verify(p.SessionIdentification); err != nil {
			return nil, err
		}
		if p.TermsOfServiceID != testTOSID || !p.TermsOfServiceAgree {
			return nil, rpcErr(rpc.ErrAgreementRequired)
		}
		return rpc.Peer{ID: "peer-" + p.Username, Type: rpc.PeerTypeUser,
			Name: p.FirstName, Username: p.Username}, nil

	case rpc.MethodHelpGetTermsOfService:
		return rpc.HelpDocument{ID: testTOSID, Text: "Be nice."}, nil

	case rpc.MethodHelpGetServerInformation:
		info := rpc.ServerInformation{NetworkName: "test", CDNServer: fs.srv.URL + "/cdn"}
		if fs.noCDN {
			info.CDNServer = ""
		}
		return info, nil
	}
	return nil, rpcErr(rpc.ErrMethodNotFound)
}

func (fs *fakeServer) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Version string          `json:"jsonrpc"`
		ID      string          `json:"id"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fs.t.Errorf("bad request: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	res, rerr := fs.dispatch(req.Method, req.Params)
	rep := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	if rerr != nil {
		rep["error"] = map[string]interface{}{"code": int(rerr.Code), "message": rerr.Message}
	} else {
		rep["result"] = res
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rep)
}

func (fs *fakeServer) writeEnvelope(w http.ResponseWriter, results interface{}, rerr *rpc.Error) {
	env := map[string]interface{}{"success": rerr == nil}
	if rerr != nil {
		env["error_code"] = int(rerr.Code)
		env["message"] = rerr.Message
	} else {
		env["results"] = results
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(env)
}

func (fs *fakeServer) handleCDN(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		fs.t.Errorf("bad form: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	id := rpc.SessionIdentification{
		SessionID:        r.FormValue("session_id"),
		ClientPublicHash: r.FormValue("client_public_hash"),
		ChallengeAnswer:  r.FormValue("challenge_answer"),
	}

	fs.mtx.Lock()
	defer fs.mtx.Unlock()
	fs.calls["cdn."+r.FormValue("action")]++
	if _, rerr := fs.verify(id); rerr != nil {
		fs.writeEnvelope(w, nil, rerr)
		return
	}

	switch r.FormValue("action") {
	case "upload":
		f, fh, err := r.FormFile("document")
		if err != nil {
			fs.writeEnvelope(w, nil, rpcErr(rpc.ErrFileUploadError))
			return
		}
		data, _ := io.ReadAll(f)
		f.Close()
		docID := fmt.Sprintf("doc-%d", len(fs.documents)+1)
		fs.documents[docID] = data
		fs.writeEnvelope(w, rpc.Document{
			ID:       docID,
			FileName: fh.Filename,
			FileSize: int64(len(data)),
			FileType: rpc.FileTypeDocument,
		}, nil)

	case "download":
		data, ok := fs.documents[r.FormValue("document")]
		if !ok {
			fs.writeEnvelope(w, nil, rpcErr(rpc.ErrDocumentNotFound))
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(data)

	default:
		fs.writeEnvelope(w, nil, rpcErr(rpc.ErrInvalidParams))
	}
}
