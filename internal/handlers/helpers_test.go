package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/contacts/internal/logger"
	"github.com/nkiryanov/contacts/internal/repository/postgres"
	"github.com/nkiryanov/contacts/internal/service/auth"
	"github.com/nkiryanov/contacts/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/contacts/internal/service/contact"
	"github.com/nkiryanov/contacts/internal/service/mailer"
	"github.com/nkiryanov/contacts/internal/service/user"
)

// Mail queue that keeps messages in memory
type memMailQueue struct {
	mu       sync.Mutex
	messages []mailer.Message
}

func (q *memMailQueue) Enqueue(msg mailer.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, msg)
	return nil
}

// Token from the last letter sent to the address
func (q *memMailQueue) LastToken(t *testing.T, to string, kind mailer.Kind) string {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := len(q.messages) - 1; i >= 0; i-- {
		if q.messages[i].To == to && q.messages[i].Kind == kind {
			return q.messages[i].Token
		}
	}
	t.Fatalf("no %s letter sent to %s", kind, to)
	return ""
}

type memAvatarStore struct{}

func (memAvatarStore) Put(ctx context.Context, key string, contentType string, data []byte) (string, error) {
	return "https://cdn.example.com/" + key, nil
}

type testApp struct {
	URL  string
	Mail *memMailQueue
}

// Run http server with production services bound to the transaction
func newTestApp(t *testing.T, tx pgx.Tx) testApp {
	t.Helper()

	storage := postgres.NewStorage(tx)
	tokens, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret"})
	require.NoError(t, err, "token manager should be created without errors")

	mail := &memMailQueue{}
	authService, err := auth.NewService(
		auth.Config{Hasher: auth.BcryptHasher{Cost: bcrypt.MinCost}},
		tokens, storage.User(), mail, logger.NewNoOpLogger(),
	)
	require.NoError(t, err, "auth service starting error")

	router := NewRouter(
		authService,
		contact.NewService(storage.Contact()),
		user.NewService(storage.User(), memAvatarStore{}),
		storage,
		logger.NewNoOpLogger(),
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return testApp{URL: srv.URL, Mail: mail}
}

// Send request with optional JSON body and bearer token, return status and body
func doRequest(t *testing.T, method string, url string, token string, body string) (int, string) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(respBody)
}
