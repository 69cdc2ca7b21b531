package main

import (
	"bufio"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nickyhof/SliceDB"
	"github.com/nickyhof/SliceDB/core"
)

func setupTestServer(t *testing.T) (*Server, func()) {
	instance := SliceDB.Open(filepath.Join(t.TempDir(), "server.duckdb"))
	identity := core.Identity{Name: "test", Email: "test@test.com"}

	server := NewServer(instance, identity)
	if err := server.Start(":0"); err != nil { // :0 picks a free port
		t.Fatalf("Failed to start server: %v", err)
	}

	return server, func() {
		server.Stop()
	}
}

func sendQuery(t *testing.T, addr, query string) Response {
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	// Send query
	_, err = conn.Write([]byte(query + "\n"))
	if err != nil {
		t.Fatalf("Failed to send query: %v", err)
	}

	// Read response
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	var resp Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	return resp
}

func TestServerStartStop(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	if server.Addr() == "" {
		t.Error("Expected non-empty address")
	}
}

func TestServerCreateTableAndInsert(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	// Create table
	resp := sendQuery(t, server.Addr(), "CREATE TABLE users (id INTEGER, name VARCHAR)")
	if !resp.Success {
		t.Fatalf("Failed to create table: %s", resp.Error)
	}
	if resp.Type != "exec" {
		t.Errorf("Expected exec type, got: %s", resp.Type)
	}

	// Insert record
	resp = sendQuery(t, server.Addr(), "INSERT INTO users VALUES (1, 'Alice')")
	if !resp.Success {
		t.Fatalf("Failed to insert: %s", resp.Error)
	}
}

func TestServerSelect(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	// Setup
	sendQuery(t, server.Addr(), "CREATE TABLE items (id INTEGER, value VARCHAR)")
	sendQuery(t, server.Addr(), "INSERT INTO items VALUES (1, 'one')")
	sendQuery(t, server.Addr(), "INSERT INTO items VALUES (2, 'two')")

	// Query
	resp := sendQuery(t, server.Addr(), "SELECT * FROM items ORDER BY id")
	if !resp.Success {
		t.Fatalf("Failed to select: %s", resp.Error)
	}
	if resp.Type != "query" {
		t.Errorf("Expected query type, got: %s", resp.Type)
	}

	var qr QueryResponse
	if err := json.Unmarshal(resp.Result, &qr); err != nil {
		t.Fatalf("Failed to parse query result: %v", err)
	}
	if len(qr.Data) != 2 {
		t.Errorf("Expected 2 rows, got: %d", len(qr.Data))
	}
	if qr.RecordsRead != 2 {
		t.Errorf("Expected 2 records read, got: %d", qr.RecordsRead)
	}
	if len(qr.Columns) != 2 {
		t.Errorf("Expected 2 columns, got: %d", len(qr.Columns))
	}
}

func TestServerError(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	resp := sendQuery(t, server.Addr(), "SELECT * FROM nonexistent")
	if resp.Success {
		t.Error("Expected failure for non-existent table")
	}
	if resp.Error == "" {
		t.Error("Expected error message")
	}
}

func TestServerSyntaxError(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	resp := sendQuery(t, server.Addr(), "CREATE TABEL foo (id INTEGER)")
	if resp.Success {
		t.Error("Expected failure for syntax error")
	}
	if resp.Error == "" {
		t.Error("Expected error message")
	}
}

func TestServerFailedStatementRollsBack(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	sendQuery(t, server.Addr(), "CREATE TABLE t (v INTEGER)")

	// A failing statement rolls back its scope.
	resp := sendQuery(t, server.Addr(), "INSERT INTO t SELECT no_such_column FROM t")
	if resp.Success {
		t.Error("Expected failure")
	}

	// The table itself survived its own committed scope.
	resp = sendQuery(t, server.Addr(), "SELECT COUNT(*) FROM t")
	if !resp.Success {
		t.Fatalf("Select failed: %s", resp.Error)
	}
}

func TestServerPersistentConnection(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	// Connect once
	conn, err := net.DialTimeout("tcp", server.Addr(), 2*time.Second)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// Send multiple queries on same connection
	queries := []string{
		"CREATE TABLE persist (id INTEGER)",
		"INSERT INTO persist VALUES (1)",
		"INSERT INTO persist VALUES (2)",
		"SELECT * FROM persist",
	}

	for _, query := range queries {
		_, err = conn.Write([]byte(query + "\n"))
		if err != nil {
			t.Fatalf("Failed to send query '%s': %v", query, err)
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("Failed to read response for '%s': %v", query, err)
		}

		var resp Response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("Failed to parse response for '%s': %v", query, err)
		}

		if !resp.Success {
			t.Errorf("Query '%s' failed: %s", query, resp.Error)
		}
	}
}

// setupAuthTestServer creates a server with authentication enabled
func setupAuthTestServer(t *testing.T, secret string) (*Server, func()) {
	instance := SliceDB.Open(filepath.Join(t.TempDir(), "auth.duckdb"))

	authConfig := &AuthConfig{
		Enabled:   true,
		JWTSecret: secret,
	}

	server := NewServerWithAuth(instance, authConfig)
	if err := server.Start(":0"); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	return server, func() {
		server.Stop()
	}
}

func TestAuthRequired(t *testing.T) {
	server, cleanup := setupAuthTestServer(t, "test-secret")
	defer cleanup()

	// Try to query without authenticating
	resp := sendQuery(t, server.Addr(), "CREATE TABLE t (id INTEGER)")
	if resp.Success {
		t.Error("Expected failure when not authenticated")
	}
	if !strings.Contains(resp.Error, "authentication required") {
		t.Errorf("Expected 'authentication required' error, got: %s", resp.Error)
	}
}

func TestAuthWithValidJWT(t *testing.T) {
	secret := "test-secret"
	server, cleanup := setupAuthTestServer(t, secret)
	defer cleanup()

	// Create a valid JWT token
	token := createTestJWT(t, secret, "Test User", "test@example.com")

	conn, err := net.DialTimeout("tcp", server.Addr(), 2*time.Second)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// Send AUTH command
	_, err = conn.Write([]byte("AUTH JWT " + token + "\n"))
	if err != nil {
		t.Fatalf("Failed to send auth: %v", err)
	}

	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("Failed to read auth response: %v", err)
	}

	var resp Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		t.Fatalf("Failed to parse auth response: %v", err)
	}

	if !resp.Success {
		t.Errorf("Auth failed: %s", resp.Error)
	}
	if resp.Type != "auth" {
		t.Errorf("Expected 'auth' type, got: %s", resp.Type)
	}

	// Parse auth response
	var authResp AuthResponse
	if err := json.Unmarshal(resp.Result, &authResp); err != nil {
		t.Fatalf("Failed to parse auth result: %v", err)
	}
	if !authResp.Authenticated {
		t.Error("Expected authenticated to be true")
	}
	if authResp.Identity != "Test User <test@example.com>" {
		t.Errorf("Expected identity 'Test User <test@example.com>', got: %s", authResp.Identity)
	}

	// Now query should work
	_, err = conn.Write([]byte("CREATE TABLE authtest (id INTEGER)\n"))
	if err != nil {
		t.Fatalf("Failed to send query: %v", err)
	}

	line, err = reader.ReadString('\n')
	if err != nil {
		t.Fatalf("Failed to read query response: %v", err)
	}

	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		t.Fatalf("Failed to parse query response: %v", err)
	}

	if !resp.Success {
		t.Errorf("Query after auth failed: %s", resp.Error)
	}
}

func TestAuthWithInvalidJWT(t *testing.T) {
	server, cleanup := setupAuthTestServer(t, "test-secret")
	defer cleanup()

	// Create token with wrong secret
	wrongToken := createTestJWT(t, "wrong-secret", "Test User", "test@example.com")

	conn, err := net.DialTimeout("tcp", server.Addr(), 2*time.Second)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// Send AUTH command with invalid token
	_, err = conn.Write([]byte("AUTH JWT " + wrongToken + "\n"))
	if err != nil {
		t.Fatalf("Failed to send auth: %v", err)
	}

	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("Failed to read auth response: %v", err)
	}

	var resp Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		t.Fatalf("Failed to parse auth response: %v", err)
	}

	if resp.Success {
		t.Error("Expected auth to fail with wrong secret")
	}
	if resp.Error == "" {
		t.Error("Expected error message")
	}
}

// createTestJWT creates a JWT token for testing
func createTestJWT(t *testing.T, secret, name, email string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"name":  name,
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to create test JWT: %v", err)
	}
	return tokenString
}

func TestParseAuthCommand(t *testing.T) {
	token, err := parseAuthCommand("AUTH JWT abc.def.ghi")
	if err != nil {
		t.Fatalf("parseAuthCommand failed: %v", err)
	}
	if token != "abc.def.ghi" {
		t.Errorf("Unexpected token: %s", token)
	}

	if _, err := parseAuthCommand("AUTH BASIC user pass"); err == nil {
		t.Error("Expected error for unsupported auth type")
	}
	if _, err := parseAuthCommand("AUTH JWT"); err == nil {
		t.Error("Expected error for missing credentials")
	}
	if _, err := parseAuthCommand("SELECT 1"); err == nil {
		t.Error("Expected error for non-AUTH command")
	}
}

// === TLS Tests ===

// setupTLSTestServer creates a server with TLS enabled using test certificates
func setupTLSTestServer(t *testing.T) (*Server, string, string, func()) {
	t.Helper()

	// Create temporary directory for test certificates
	tmpDir := t.TempDir()
	certFile := tmpDir + "/cert.pem"
	keyFile := tmpDir + "/key.pem"

	// Generate self-signed test certificate
	generateTestCertificate(t, certFile, keyFile)

	instance := SliceDB.Open(filepath.Join(tmpDir, "tls.duckdb"))
	identity := core.Identity{Name: "test", Email: "test@test.com"}

	server := NewServer(instance, identity)
	if err := server.StartTLS(":0", certFile, keyFile); err != nil {
		t.Fatalf("Failed to start TLS server: %v", err)
	}

	return server, certFile, keyFile, func() {
		server.Stop()
	}
}

// generateTestCertificate creates a self-signed certificate for testing
func generateTestCertificate(t *testing.T, certFile, keyFile string) {
	t.Helper()

	// Generate a private key
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate private key: %v", err)
	}

	// Create certificate template
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName: "localhost",
		},
		NotBefore: time.Now(),
		NotAfter:  time.Now().Add(time.Hour),
		KeyUsage:  x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{
			x509.ExtKeyUsageServerAuth,
		},
		IPAddresses: []net.IP{net.ParseIP("127.0.0.1"), net.IPv6loopback},
		DNSNames:    []string{"localhost"},
	}

	// Create self-signed certificate
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}

	// Write certificate to file
	certOut, err := os.Create(certFile)
	if err != nil {
		t.Fatalf("Failed to create cert file: %v", err)
	}
	pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	certOut.Close()

	// Write private key to file
	keyOut, err := os.Create(keyFile)
	if err != nil {
		t.Fatalf("Failed to create key file: %v", err)
	}
	pem.Encode(keyOut, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	keyOut.Close()
}

func TestTLSServerStartStop(t *testing.T) {
	server, _, _, cleanup := setupTLSTestServer(t)
	defer cleanup()

	if server.Addr() == "" {
		t.Error("Expected non-empty address")
	}
	if !server.TLSEnabled() {
		t.Error("Expected TLS to be enabled")
	}
}

func TestTLSServerConnection(t *testing.T) {
	server, certFile, _, cleanup := setupTLSTestServer(t)
	defer cleanup()

	// Load certificate for client
	certPool := x509.NewCertPool()
	certData, err := os.ReadFile(certFile)
	if err != nil {
		t.Fatalf("Failed to read cert: %v", err)
	}
	certPool.AppendCertsFromPEM(certData)

	// Connect with TLS
	tlsConfig := &tls.Config{
		RootCAs:    certPool,
		ServerName: "localhost",
	}

	conn, err := tls.DialWithDialer(&net.Dialer{Timeout: 2 * time.Second}, "tcp", server.Addr(), tlsConfig)
	if err != nil {
		t.Fatalf("Failed to connect with TLS: %v", err)
	}
	defer conn.Close()

	// Send a query
	_, err = conn.Write([]byte("CREATE TABLE tlstest (id INTEGER)\n"))
	if err != nil {
		t.Fatalf("Failed to send query: %v", err)
	}

	// Read response
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	var resp Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if !resp.Success {
		t.Errorf("Query failed: %s", resp.Error)
	}
	if resp.Type != "exec" {
		t.Errorf("Expected exec type, got: %s", resp.Type)
	}
}

func TestTLSServerInvalidCert(t *testing.T) {
	server, _, _, cleanup := setupTLSTestServer(t)
	defer cleanup()

	// System CAs won't include our self-signed cert.
	tlsConfig := &tls.Config{
		ServerName: "localhost",
	}

	_, err := tls.DialWithDialer(&net.Dialer{Timeout: 2 * time.Second}, "tcp", server.Addr(), tlsConfig)
	if err == nil {
		t.Error("Expected TLS connection to fail with invalid certificate")
	}
}

func TestTLSServerWithInsecureSkipVerify(t *testing.T) {
	server, _, _, cleanup := setupTLSTestServer(t)
	defer cleanup()

	// Connect with InsecureSkipVerify (dev mode)
	tlsConfig := &tls.Config{
		InsecureSkipVerify: true,
	}

	conn, err := tls.DialWithDialer(&net.Dialer{Timeout: 2 * time.Second}, "tcp", server.Addr(), tlsConfig)
	if err != nil {
		t.Fatalf("Failed to connect with TLS (insecure): %v", err)
	}
	defer conn.Close()

	// Send a simple query
	_, err = conn.Write([]byte("SHOW TABLES\n"))
	if err != nil {
		t.Fatalf("Failed to send query: %v", err)
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	var resp Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if !resp.Success {
		t.Errorf("Query failed: %s", resp.Error)
	}
}
