package handle

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
)

var testKey = func() *rsa.PrivateKey {
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return k
}()

func TestParseKey(t *testing.T) {
	plain := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(testKey)})
	got, err := ParseKey(plain, "")
	if err != nil {
		t.Fatalf("ParseKey() error = %v", err)
	}
	if !got.Equal(testKey) {
		t.Error("ParseKey() returned a different key")
	}

	//nolint:staticcheck // legacy encrypted PEM is what older tools emit
	block, err := x509.EncryptPEMBlock(rand.Reader, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(testKey), []byte("secret"), x509.PEMCipherAES256)
	if err != nil {
		t.Fatalf("EncryptPEMBlock() error = %v", err)
	}
	encrypted := pem.EncodeToMemory(block)
	if _, err := ParseKey(encrypted, ""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("ParseKey() without password error = %v, want ErrInvalidKey", err)
	}
	if got, err := ParseKey(encrypted, "secret"); err != nil || !got.Equal(testKey) {
		t.Errorf("ParseKey() with password = %v", err)
	}
	if _, err := ParseKey([]byte("garbage"), ""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("ParseKey(garbage) error = %v", err)
	}
}

var authParam = regexp.MustCompile(`(\w+)="([^"]*)"`)

func authParams(h string) map[string]string {
	out := make(map[string]string)
	for _, m := range authParam.FindAllStringSubmatch(h, -1) {
		out[m[1]] = m[2]
	}
	return out
}

// fakeServer is a handle server with one authenticated session and an
// in-memory handle table.
type fakeServer struct {
	mu       sync.Mutex
	nonce    []byte
	sessions int
	handles  map[string][]handleValue
	puts     []string
	srv      *httptest.Server
}

func newFakeServer(t *testing.T, pub *rsa.PublicKey) *fakeServer {
	t.Helper()
	f := &fakeServer{nonce: []byte("server-nonce-123"), handles: make(map[string][]handleValue)}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.sessions++
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"sessionId": "s1", "nonce": base64.StdEncoding.EncodeToString(f.nonce)})
	})
	mux.HandleFunc("PUT /api/sessions/this", func(w http.ResponseWriter, r *http.Request) {
		p := authParams(r.Header.Get("Authorization"))
		cnonce, _ := base64.StdEncoding.DecodeString(p["cnonce"])
		sig, _ := base64.StdEncoding.DecodeString(p["signature"])
		digest := sha256.Sum256(append(append([]byte{}, f.nonce...), cnonce...))
		ok := p["id"] == "300:0.NA/11705" && p["type"] == "HS_PUBKEY" &&
			rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig) == nil
		_ = json.NewEncoder(w).Encode(map[string]any{"sessionId": "s1", "authenticated": ok})
	})
	mux.HandleFunc("GET /api/handles/{prefix}/{suffix...}", func(w http.ResponseWriter, r *http.Request) {
		h := r.PathValue("prefix") + "/" + r.PathValue("suffix")
		f.mu.Lock()
		_, ok := f.handles[h]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"responseCode": 100}`)
			return
		}
		_, _ = io.WriteString(w, `{"responseCode": 1}`)
	})
	mux.HandleFunc("PUT /api/handles/{prefix}/{suffix...}", func(w http.ResponseWriter, r *http.Request) {
		if authParams(r.Header.Get("Authorization"))["sessionId"] != "s1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			Values []handleValue `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h := r.PathValue("prefix") + "/" + r.PathValue("suffix")
		f.mu.Lock()
		f.handles[h] = body.Values
		f.puts = append(f.puts, r.URL.RawQuery)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) values(h string) []handleValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles[h]
}

func (f *fakeServer) state() (puts []string, sessions, handles int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.puts...), f.sessions, len(f.handles)
}

func newTestClient(t *testing.T, f *fakeServer, key *rsa.PrivateKey) *Client {
	t.Helper()
	c, err := NewClient(f.srv.URL, "11705", key, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestRegister_CreateThenModify(t *testing.T) {
	f := newFakeServer(t, &testKey.PublicKey)
	c := newTestClient(t, f, testKey)
	ctx := context.Background()

	if err := c.Register(ctx, "11705/PROLE/2019", "https://hdl.handle.net/11705/123"); err != nil {
		t.Fatalf("Register() create error = %v", err)
	}
	values := f.values("11705/PROLE/2019")
	if len(values) != 2 || values[0].Type != "URL" || values[0].Index != 1 || values[0].TTL != TTL {
		t.Fatalf("created values = %+v", values)
	}
	if values[1].Type != "HS_ADMIN" || values[1].Index != 100 {
		t.Errorf("admin value = %+v", values[1])
	}
	admin, _ := json.Marshal(values[1].Data.Value)
	if string(admin) != `{"handle":"0.NA/11705","index":300,"permissions":"011111110011"}` {
		t.Errorf("admin data = %s", admin)
	}

	if err := c.Register(ctx, "11705/PROLE/2019", "https://hdl.handle.net/11705/456"); err != nil {
		t.Fatalf("Register() modify error = %v", err)
	}
	if got := f.values("11705/PROLE/2019"); len(got) != 1 || got[0].Data.Value != "https://hdl.handle.net/11705/456" {
		t.Errorf("modified values = %+v", got)
	}
	puts, sessions, _ := f.state()
	if len(puts) != 2 || puts[0] != "overwrite=false" || puts[1] != "index=1" {
		t.Errorf("put queries = %v", puts)
	}
	if sessions != 1 {
		t.Errorf("opened %d sessions, want 1", sessions)
	}
}

func TestRegister_WrongKey(t *testing.T) {
	f := newFakeServer(t, &testKey.PublicKey)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	c := newTestClient(t, f, other)

	err = c.Register(context.Background(), "11705/PROLE", "https://hdl.handle.net/11705/1")
	if !IsRegistrationError(err) || !errors.Is(err, ErrAuthentication) {
		t.Errorf("Register() error = %v, want authentication RegistrationError", err)
	}
	var re *RegistrationError
	if errors.As(err, &re) && re.Handle != "11705/PROLE" {
		t.Errorf("RegistrationError.Handle = %q", re.Handle)
	}
	if _, _, n := f.state(); n != 0 {
		t.Errorf("%d handles written without authentication", n)
	}
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient("", "11705", testKey); err == nil {
		t.Error("NewClient() accepted an empty URL")
	}
	if _, err := NewClient("https://hdl.example.org:8000", "", testKey); err == nil {
		t.Error("NewClient() accepted an empty prefix")
	}
	if _, err := NewClient("https://hdl.example.org:8000", "11705", nil); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("NewClient() without key error = %v", err)
	}
}

func TestSkip(t *testing.T) {
	var r Registrar = Skip{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	if err := r.Register(context.Background(), "11705/X", "https://example.org"); err != nil {
		t.Errorf("Skip.Register() error = %v", err)
	}
}
