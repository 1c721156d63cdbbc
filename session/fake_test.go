package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/socialvoid/svclient/challenge"
	"github.com/socialvoid/svclient/identity"
	"github.com/socialvoid/svclient/internal/testutils"
	"github.com/socialvoid/svclient/rpc"
)

const testChallenge = "JBSWY3DPEHPK3PXP"

// testTime is inside a challenge window, away from its edges.
var testTime = time.Unix(1_700_000_025, 0)

type fakeCall struct {
	method string
	params interface{}
}

type handler func(params interface{}) (interface{}, error)

// fakeCaller is an rpc.Caller that dispatches calls to per method handlers.
// session.create is handled by default, issuing sequential session ids.
type fakeCaller struct {
	mtx      sync.Mutex
	calls    []fakeCall
	handlers map[string]handler
	nextID   int
}

func newFakeCaller() *fakeCaller {
	fc := &fakeCaller{handlers: make(map[string]handler)}
	fc.handlers[rpc.MethodSessionCreate] = func(interface{}) (interface{}, error) {
		fc.mtx.Lock()
		fc.nextID++
		id := fmt.Sprintf("session-%03d-0000-0000", fc.nextID)
		fc.mtx.Unlock()
		return rpc.SessionEstablished{ID: id, Challenge: testChallenge}, nil
	}
	return fc
}

func (fc *fakeCaller) handle(method string, h handler) {
	fc.mtx.Lock()
	fc.handlers[method] = h
	fc.mtx.Unlock()
}

func (fc *fakeCaller) Call(ctx context.Context, method string, params, result interface{}) error {
	fc.mtx.Lock()
	fc.calls = append(fc.calls, fakeCall{method: method, params: params})
	h := fc.handlers[method]
	fc.mtx.Unlock()

	if h == nil {
		return rpc.NewError(int(rpc.ErrMethodNotFound), method)
	}
	res, err := h(params)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, result)
}

// callsTo returns the calls made to method.
func (fc *fakeCaller) callsTo(method string) []fakeCall {
	fc.mtx.Lock()
	defer fc.mtx.Unlock()
	var res []fakeCall
	for _, c := range fc.calls {
		if c.method == method {
			res = append(res, c)
		}
	}
	return res
}

func testIdentity(t testing.TB) *identity.ClientIdentity {
	t.Helper()
	id := identity.Generate("session test")
	return id
}

func newTestHolder(t testing.TB) *Holder {
	t.Helper()
	h := NewHolder(testIdentity(t), testutils.TestLoggerSys(t, "SESS"))
	h.now = func() time.Time { return testTime }
	return h
}

func newEstablishedHolder(t testing.TB, fc *fakeCaller) *Holder {
	t.Helper()
	h := newTestHolder(t)
	if err := h.Create(context.Background(), fc); err != nil {
		t.Fatal(err)
	}
	return h
}

func newTestRegistry(t testing.TB) *Registry {
	t.Helper()
	return NewRegistry(testIdentity(t), testutils.TestLoggerSys(t, "SESS"))
}

// newRegistryWithSessions returns a registry with n established sessions.
func newRegistryWithSessions(t testing.TB, fc *fakeCaller, n int) *Registry {
	t.Helper()
	r := newTestRegistry(t)
	for i := 0; i < n; i++ {
		if _, err := r.NewSession(context.Background(), fc); err != nil {
			t.Fatal(err)
		}
	}
	return r
}

// expectedAnswer is the challenge answer for the test identity at testTime.
func expectedAnswer(t testing.TB, id *identity.ClientIdentity) string {
	t.Helper()
	answer, err := challenge.Answer(id.PrivateHash, testChallenge, testTime)
	if err != nil {
		t.Fatal(err)
	}
	return answer
}
