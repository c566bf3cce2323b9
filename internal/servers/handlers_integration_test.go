package servers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/BlockBoard/BB-Backend/internal/auth"
	"github.com/BlockBoard/BB-Backend/internal/captcha"
	"github.com/BlockBoard/BB-Backend/internal/config"
	"github.com/BlockBoard/BB-Backend/internal/db"
	"github.com/BlockBoard/BB-Backend/internal/servers"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// dbAvailable tracks whether the database connection was established.
var dbAvailable bool

// testServer is the shared httptest server for all integration tests.
var testServer *httptest.Server

var testDB *gorm.DB

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env.local")

	if os.Getenv("DATABASE_URL") == "" {
		// No database available, every integration test skips itself.
		os.Exit(m.Run())
	}

	var err error
	testDB, err = db.Connect(os.Getenv("DATABASE_URL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "db connect: %v\n", err)
		os.Exit(1)
	}
	dbAvailable = true

	if err := auth.Init(testDB); err != nil {
		fmt.Fprintf(os.Stderr, "auth init: %v\n", err)
		os.Exit(1)
	}
	if err := servers.Init(testDB); err != nil {
		fmt.Fprintf(os.Stderr, "servers init: %v\n", err)
		os.Exit(1)
	}

	cfg := &config.Config{
		ListingLimit:      25,
		MaxServersPerUser: 5,
	}
	store := auth.NewStore(testDB)
	resolver := auth.NewResolver(store)
	guard := servers.NewVoteGuard(&servers.GormVoteStore{DB: testDB})
	// Empty captcha secret disables verification, like local development.
	handler := servers.NewHandler(testDB, guard, servers.NewVerifier(),
		captcha.NewVerifier(""), cfg)

	r := chi.NewRouter()
	r.Mount("/servers", servers.Routes(handler, resolver))

	testServer = httptest.NewServer(r)
	defer testServer.Close()

	os.Exit(m.Run())
}

// createTestUser inserts a user with a live session and registers cleanup.
// Returns the user and the session token.
func createTestUser(t *testing.T, admin bool) (*auth.User, string) {
	t.Helper()
	if !dbAvailable {
		t.Skip("skipping integration test (requires DATABASE_URL)")
	}

	user := auth.User{
		UUID:      uuid.NewString(),
		DiscordID: "it-" + uuid.NewString()[:8],
		Username:  "ituser_" + uuid.NewString()[:8],
		Admin:     admin,
	}
	if err := testDB.Create(&user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	session, err := auth.NewStore(testDB).CreateSession(user.UUID, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("failed to create test session: %v", err)
	}

	t.Cleanup(func() {
		testDB.Delete(&servers.VoteCooldown{}, "user_id = ?", user.UUID)
		testDB.Delete(&auth.Session{}, "user_id = ?", user.UUID)
		testDB.Delete(&auth.User{}, "uuid = ?", user.UUID)
	})
	return &user, session.SessionToken
}

// createTestServer inserts a server directly, bypassing the rate-limited
// create endpoint, and registers cleanup.
func createTestServer(t *testing.T, owner string, verified bool) *servers.Server {
	t.Helper()

	server := servers.Server{
		UUID:        uuid.NewString(),
		Owner:       owner,
		Name:        "it-server-" + uuid.NewString()[:8],
		Description: "integration test server",
		Address:     "wss://" + uuid.NewString()[:8] + ".example.com",
		Code:        "0123456789",
		Verified:    verified,
		Tags:        pq.StringArray{"SURVIVAL"},
	}
	if err := testDB.Create(&server).Error; err != nil {
		t.Fatalf("failed to create test server: %v", err)
	}

	t.Cleanup(func() {
		testDB.Delete(&servers.VoteCooldown{}, "server_id = ?", server.UUID)
		testDB.Delete(&servers.Comment{}, "server_id = ?", server.UUID)
		testDB.Delete(&servers.Server{}, "uuid = ?", server.UUID)
	})
	return &server
}

// request performs an HTTP call against the test server, attaching the
// session cookie when token is non-empty.
func request(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, testServer.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "session", Value: token})
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var envelope map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil && err != io.EOF {
		t.Fatalf("response is not JSON: %v", err)
	}
	return resp, envelope
}

// TestCreate_RequiresSession verifies the create endpoint sits behind the
// user gate.
func TestCreate_RequiresSession(t *testing.T) {
	if !dbAvailable {
		t.Skip("skipping integration test (requires DATABASE_URL)")
	}

	resp, envelope := request(t, http.MethodPost, "/servers", "", map[string]any{})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
	if success, _ := envelope["success"].(bool); success {
		t.Error("expected success=false in envelope")
	}
}

// TestCreate_Validation verifies field limits, the address pattern, and
// the tag vocabulary are enforced.
func TestCreate_Validation(t *testing.T) {
	_, token := createTestUser(t, false)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing fields", map[string]any{"name": "x"}},
		{"bad address", map[string]any{
			"name": "A", "description": "d", "address": "https://not-a-socket.example",
			"tags": []string{"SURVIVAL"},
		}},
		{"bad tags", map[string]any{
			"name": "A", "description": "d", "address": "wss://ok.example.com",
			"tags": []string{"DEFINITELY_NOT_A_TAG"},
		}},
	}
	for _, tc := range cases {
		resp, _ := request(t, http.MethodPost, "/servers", token, tc.body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, resp.StatusCode)
		}
	}
}

// TestCreate_And_DuplicateName verifies a successful create returns the
// generated code, and a same-name retry is rejected.
func TestCreate_And_DuplicateName(t *testing.T) {
	_, token := createTestUser(t, false)

	name := "it-create-" + uuid.NewString()[:8]
	body := map[string]any{
		"name":        name,
		"description": "a test listing",
		"address":     "wss://" + uuid.NewString()[:8] + ".example.com",
		"tags":        []string{"SURVIVAL", "PVE"},
	}

	resp, envelope := request(t, http.MethodPost, "/servers", token, body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", resp.StatusCode, envelope)
	}
	data, _ := envelope["data"].(map[string]any)
	code, _ := data["code"].(string)
	if len(code) != 10 {
		t.Errorf("expected a 10-char code, got %q", code)
	}
	serverID, _ := data["uuid"].(string)
	t.Cleanup(func() { testDB.Delete(&servers.Server{}, "uuid = ?", serverID) })

	// Same name, different address, different case.
	body["name"] = strings.ToUpper(name)
	body["address"] = "wss://" + uuid.NewString()[:8] + ".example.com"
	resp, _ = request(t, http.MethodPost, "/servers", token, body)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate name, got %d", resp.StatusCode)
	}
}

// TestGet_CodeVisibility verifies only the owner sees the secret code on
// the public endpoint.
func TestGet_CodeVisibility(t *testing.T) {
	owner, ownerToken := createTestUser(t, false)
	_, strangerToken := createTestUser(t, false)
	server := createTestServer(t, owner.UUID, true)

	resp, envelope := request(t, http.MethodGet, "/servers/"+server.UUID, ownerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner fetch: expected 200, got %d", resp.StatusCode)
	}
	data, _ := envelope["data"].(map[string]any)
	view, _ := data["server"].(map[string]any)
	if view["code"] != server.Code {
		t.Errorf("owner should see the code, got %v", view["code"])
	}

	for name, token := range map[string]string{"anonymous": "", "stranger": strangerToken} {
		resp, envelope := request(t, http.MethodGet, "/servers/"+server.UUID, token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s fetch: expected 200, got %d", name, resp.StatusCode)
		}
		data, _ := envelope["data"].(map[string]any)
		view, _ := data["server"].(map[string]any)
		if code, ok := view["code"]; ok && code != "" {
			t.Errorf("%s must not see the code, got %v", name, code)
		}
	}
}

// TestGet_UnverifiedHidden verifies an unverified server is reported as
// missing to everyone but its owner.
func TestGet_UnverifiedHidden(t *testing.T) {
	owner, ownerToken := createTestUser(t, false)
	server := createTestServer(t, owner.UUID, false)

	resp, _ := request(t, http.MethodGet, "/servers/"+server.UUID, "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("anonymous: expected 404 for unverified server, got %d", resp.StatusCode)
	}

	resp, _ = request(t, http.MethodGet, "/servers/"+server.UUID, ownerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("owner: expected 200, got %d", resp.StatusCode)
	}
}

// TestList_HidesUnlisted verifies unverified servers stay out of the
// public listing.
func TestList_HidesUnlisted(t *testing.T) {
	owner, _ := createTestUser(t, false)
	hidden := createTestServer(t, owner.UUID, false)

	resp, envelope := request(t, http.MethodGet, "/servers?limit=100", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	entries, _ := envelope["data"].([]any)
	for _, e := range entries {
		entry, _ := e.(map[string]any)
		if entry["uuid"] == hidden.UUID {
			t.Error("unverified server leaked into the public listing")
		}
	}
}

// TestVote_Cooldown verifies one vote succeeds and the immediate repeat
// is a 409 with the counter unchanged.
func TestVote_Cooldown(t *testing.T) {
	owner, _ := createTestUser(t, false)
	_, voterToken := createTestUser(t, false)
	server := createTestServer(t, owner.UUID, true)

	body := map[string]any{"captcha": "test", "value": true}

	resp, envelope := request(t, http.MethodPost, "/servers/"+server.UUID+"/vote", voterToken, body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first vote: expected 200, got %d (%v)", resp.StatusCode, envelope)
	}
	data, _ := envelope["data"].(map[string]any)
	if votes, _ := data["votes"].(float64); votes != 1 {
		t.Errorf("expected vote count 1, got %v", data["votes"])
	}

	resp, _ = request(t, http.MethodPost, "/servers/"+server.UUID+"/vote", voterToken, body)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second vote: expected 409, got %d", resp.StatusCode)
	}

	var stored servers.Server
	if err := testDB.First(&stored, "uuid = ?", server.UUID).Error; err != nil {
		t.Fatalf("reload server: %v", err)
	}
	if stored.Votes != 1 {
		t.Errorf("repeat vote must not change the counter, got %d", stored.Votes)
	}
}

// TestUpdate_OwnerOnly verifies a stranger cannot edit someone else's
// server while the owner can.
func TestUpdate_OwnerOnly(t *testing.T) {
	owner, ownerToken := createTestUser(t, false)
	_, strangerToken := createTestUser(t, false)
	server := createTestServer(t, owner.UUID, true)

	body := map[string]any{"description": "updated"}

	resp, _ := request(t, http.MethodPut, "/servers/"+server.UUID, strangerToken, body)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("stranger: expected 403, got %d", resp.StatusCode)
	}

	resp, envelope := request(t, http.MethodPut, "/servers/"+server.UUID, ownerToken, body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner: expected 200, got %d (%v)", resp.StatusCode, envelope)
	}
	data, _ := envelope["data"].(map[string]any)
	if data["description"] != "updated" {
		t.Errorf("expected updated description, got %v", data["description"])
	}
}
