package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/swuota-server/swuota-server/internal/config"
	"github.com/swuota-server/swuota-server/internal/dm"
	"github.com/swuota-server/swuota-server/internal/storage"
	"github.com/swuota-server/swuota-server/pkg/crypto"
	"github.com/swuota-server/swuota-server/pkg/syncml"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.DM.Codec = "xml"
	cfg.DM.ContentType = "application/vnd.syncml.dm+xml"
	cfg.JWT.Secret = "test-secret"
	cfg.Users = []config.Credential{
		{Login: "swuota_user", Password: "swuota", ServerLogin: "SWUOTA", ServerPassword: "swuota"},
	}

	hash, err := crypto.HashPassword("admin-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cfg.Admins = []config.AdminUser{{Username: "admin", PasswordHash: hash}}

	store := storage.NewMemoryStore(0)
	registry := dm.NewRegistry(cfg.UserMap(), cfg.DM.Prompts, nil, 0, 0)
	engine := dm.NewEngine(syncml.XMLCodec{}, registry)

	return NewServer(cfg, engine, store)
}

func deviceMessage(sessionID, msgID string, extra ...*syncml.Node) []byte {
	hdr := syncml.New("SyncHdr").Add(
		syncml.Text("VerDTD", "1.1"),
		syncml.Text("VerProto", "DM/1.1"),
		syncml.Text("SessionID", sessionID),
		syncml.Text("MsgID", msgID),
		syncml.New("Target").Add(syncml.Text("LocURI", "http://swuota.example.com/")),
		syncml.New("Source").Add(
			syncml.Text("LocURI", "IMEI:987654"),
			syncml.Text("LocName", "swuota_user"),
		),
	)
	body := syncml.New("SyncBody").Add(extra...)
	body.Add(syncml.New("Final"))
	doc := syncml.New("SyncML").SetAttr("xmlns", "SYNCML:SYNCML1.1").Add(hdr, body)
	return syncml.Marshal(doc)
}

func postDM(t *testing.T, s *Server, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestDMEndpointRespondsToDevice(t *testing.T) {
	s := testServer(t)

	rec := postDM(t, s, deviceMessage("1", "1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/vnd.syncml.dm+xml" {
		t.Fatalf("content type: %q", got)
	}
	if rec.Header().Get("x-syncml-hmac") != "" {
		t.Fatalf("unexpected MAC header before a nonce exchange")
	}

	doc, err := syncml.Parse(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("parse response: %v", err)
	}
	// No credential: the header answer is an auth challenge.
	var code string
	for _, st := range doc.First("SyncBody").All("Status") {
		if st.TextAt("Cmd") == "SyncHdr" {
			code = st.TextAt("Data")
		}
	}
	if code != "407" {
		t.Fatalf("expected 407 header status, got %q", code)
	}
}

func TestDMEndpointAnswersUnknownLogin(t *testing.T) {
	s := testServer(t)

	msg := deviceMessage("1", "1")
	body := strings.Replace(string(msg), "swuota_user", "stranger", 1)

	rec := postDM(t, s, []byte(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}

	doc, err := syncml.Parse(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if got := doc.First("SyncBody").First("Status").TextAt("Data"); got != "401" {
		t.Fatalf("expected 401 header status, got %q", got)
	}
}

func TestDMEndpointRejectsMalformedBody(t *testing.T) {
	s := testServer(t)

	rec := postDM(t, s, []byte("this is not syncml"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", rec.Code)
	}

	rec = postDM(t, s, []byte("<NotSyncML/>"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status for wrong root: %d", rec.Code)
	}
}

func TestDMEndpointSetsMACHeaderAfterNonce(t *testing.T) {
	s := testServer(t)

	chal := syncml.New("Status").Add(
		syncml.Text("CmdID", "1"),
		syncml.Text("CmdRef", "0"),
		syncml.Text("Cmd", "SyncHdr"),
		syncml.Text("Data", "212"),
		syncml.New("Chal").Add(
			syncml.New("Meta").Add(
				syncml.Text("Type", "syncml:auth-MAC"),
				syncml.Text("Format", "b64"),
				syncml.Text("NextNonce", "MTIzNDU2"),
			),
		),
	)

	rec := postDM(t, s, deviceMessage("1", "1", chal))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}

	mac := rec.Header().Get("x-syncml-hmac")
	if mac == "" {
		t.Fatalf("expected MAC header after nonce exchange")
	}
	if !strings.HasPrefix(mac, `algorithm=MD5, username="SWUOTA", mac=`) {
		t.Fatalf("unexpected MAC header shape: %q", mac)
	}
}

func TestInfoPage(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/html; charset=utf-8" {
		t.Fatalf("content type: %q", got)
	}
	if !strings.Contains(rec.Body.String(), "SWUOTA") {
		t.Fatalf("info page missing enrollment details")
	}
}

func TestErrorRedirect(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/error9379992", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status: %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != s.config.DM.ErrorRedirect {
		t.Fatalf("location: %q", got)
	}
}
