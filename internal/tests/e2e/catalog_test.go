//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Ex1s9/microservices/config"
	"github.com/Ex1s9/microservices/internal/server"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestGameLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	username := fmt.Sprintf("dev_%d", time.Now().UnixNano())
	password := "testpass123"

	token, err := registerUser(t, baseURL, username, password, "developer")
	if err != nil {
		t.Fatalf("register user: %v", err)
	}

	created, err := createGame(t, baseURL, token)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	if created.Name != "Star Courier" {
		t.Fatalf("unexpected game name: %q", created.Name)
	}
	if created.Status != "draft" {
		t.Fatalf("expected new listing to be draft, got %q", created.Status)
	}
	if created.ID == "" {
		t.Fatalf("expected game ID to be set")
	}

	updated, err := updateGame(t, baseURL, token, created.ID)
	if err != nil {
		t.Fatalf("update game: %v", err)
	}
	if updated.Name != "Star Courier: Redux" {
		t.Fatalf("unexpected updated name: %q", updated.Name)
	}
	if updated.Status != "published" {
		t.Fatalf("unexpected updated status: %q", updated.Status)
	}

	fetched, err := getGame(t, baseURL, created.ID)
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if fetched.ID != created.ID {
		t.Fatalf("unexpected game id: %s", fetched.ID)
	}

	if err := expectGameListed(t, baseURL, created.ID, "category=Adventure", true); err != nil {
		t.Fatalf("category filter: %v", err)
	}
	if err := expectGameListed(t, baseURL, created.ID, "category=Sports", false); err != nil {
		t.Fatalf("category filter miss: %v", err)
	}
	if err := expectGameListed(t, baseURL, created.ID, "q=courier&sort=relevance", true); err != nil {
		t.Fatalf("full-text search: %v", err)
	}

	if err := deleteGame(t, baseURL, token, created.ID); err != nil {
		t.Fatalf("delete game: %v", err)
	}
	if err := expectGameNotFound(t, baseURL, created.ID); err != nil {
		t.Fatalf("expected deleted game to be missing: %v", err)
	}

	// Promoted admins can still see the soft-deleted row.
	if err := promoteUserToAdmin(username); err != nil {
		t.Fatalf("promote user: %v", err)
	}
	deleted, err := getAdminGame(t, baseURL, token, created.ID)
	if err != nil {
		t.Fatalf("admin get deleted game: %v", err)
	}
	if deleted.DeletedAt == nil {
		t.Fatalf("expected deleted_at to be set")
	}
}

func TestDuplicateRegistrationConflicts(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	username := fmt.Sprintf("dup_%d", time.Now().UnixNano())

	if _, err := registerUser(t, baseURL, username, "testpass123", "player"); err != nil {
		t.Fatalf("register user: %v", err)
	}

	payload := map[string]string{
		"username": username,
		"email":    fmt.Sprintf("%s_other@example.com", username),
		"password": "testpass123",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(baseURL+"/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 409 for duplicate username, got %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}

type gameResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Status    string   `json:"status"`
	Tags      []string `json:"tags"`
	DeletedAt *string  `json:"deleted_at"`
}

type gameListResponse struct {
	Items []gameResponse `json:"items"`
	Total int            `json:"total"`
}

type authResponse struct {
	Token string `json:"token"`
}

func registerUser(t *testing.T, baseURL, username, password, role string) (string, error) {
	t.Helper()

	payload := map[string]string{
		"username": username,
		"email":    fmt.Sprintf("%s@example.com", username),
		"password": password,
		"role":     role,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/auth/register", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("register status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed authResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("missing token in register response")
	}
	return parsed.Token, nil
}

func promoteUserToAdmin(username string) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = db.ExecContext(ctx, "UPDATE users SET role = 'admin', updated_at = NOW() WHERE username = $1", username)
	return err
}

func createGame(t *testing.T, baseURL, token string) (gameResponse, error) {
	t.Helper()

	payload := map[string]any{
		"name":         "Star Courier",
		"description":  "Deliver cargo across a dying galaxy.",
		"cover_image":  "media/covers/star-courier.png",
		"release_date": "2026-03-14",
		"price":        19.99,
		"categories":   []string{"Adventure"},
		"tags":         []string{"indie", "space"},
		"platforms":    []string{"PC", "Mac"},
	}
	return sendGameJSON(t, http.MethodPost, baseURL+"/games", token, payload, http.StatusCreated)
}

func updateGame(t *testing.T, baseURL, token, id string) (gameResponse, error) {
	t.Helper()

	payload := map[string]any{
		"name":   "Star Courier: Redux",
		"status": "published",
	}
	return sendGameJSON(t, http.MethodPut, baseURL+"/games/"+id, token, payload, http.StatusOK)
}

func sendGameJSON(t *testing.T, method, url, token string, payload map[string]any, wantStatus int) (gameResponse, error) {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		return gameResponse{}, err
	}

	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return gameResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return gameResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		msg, _ := io.ReadAll(resp.Body)
		return gameResponse{}, fmt.Errorf("%s %s status %d: %s", method, url, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed gameResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return gameResponse{}, err
	}
	return parsed, nil
}

func getGame(t *testing.T, baseURL, id string) (gameResponse, error) {
	t.Helper()

	resp, err := http.Get(baseURL + "/games/" + id)
	if err != nil {
		return gameResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return gameResponse{}, fmt.Errorf("get game status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed gameResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return gameResponse{}, err
	}
	return parsed, nil
}

func getAdminGame(t *testing.T, baseURL, token, id string) (gameResponse, error) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, baseURL+"/admin/games/"+id+"?include_deleted=true", nil)
	if err != nil {
		return gameResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return gameResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return gameResponse{}, fmt.Errorf("admin get status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed gameResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return gameResponse{}, err
	}
	return parsed, nil
}

func expectGameListed(t *testing.T, baseURL, id, query string, want bool) error {
	t.Helper()

	resp, err := http.Get(baseURL + "/games?" + query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("list status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed gameListResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return err
	}

	found := false
	for _, item := range parsed.Items {
		if item.ID == id {
			found = true
			break
		}
	}
	if found != want {
		return fmt.Errorf("listed=%v for %q, want %v", found, query, want)
	}
	return nil
}

func deleteGame(t *testing.T, baseURL, token, id string) error {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, baseURL+"/games/"+id, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete game status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func expectGameNotFound(t *testing.T, baseURL, id string) error {
	t.Helper()

	resp, err := http.Get(baseURL + "/games/" + id)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("expected 404 after delete, got %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, dsn)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func buildPostgresURL(cfg config.Config) string {
	sslmode := "disable"
	if cfg.Database.UseSSL {
		sslmode = "require"
	}
	host := fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port)
	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		host,
		cfg.Database.DBName,
		sslmode,
	)
}

func startServer() (*server.Server, error) {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "catalog")
	_ = os.Setenv("DB_PASSWORD", "password")
	_ = os.Setenv("DB_NAME", "catalog_db")
	_ = os.Setenv("DB_USE_SSL", "false")

	cfg := config.LoadConfig()
	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
