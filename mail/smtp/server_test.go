package smtp

import (
	"bufio"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// generateTestCert generates a self-signed certificate for testing
func generateTestCert(t *testing.T) tls.Certificate {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Test SMTP"},
			CommonName:   "localhost",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	require.NoError(t, err)
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes})

	privBytes, err := x509.MarshalECPrivateKey(priv)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privBytes})

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)
	return cert
}

type receivedMail struct {
	From       string
	Recipients []string
	Data       string
}

// testServer is a minimal SMTP server with optional STARTTLS and AUTH PLAIN.
type testServer struct {
	listener net.Listener

	cert       *tls.Certificate
	login      string
	password   string
	rejectRcpt bool

	mu          sync.Mutex
	sessions    int
	quits       int
	authed      bool
	authOverTLS bool
	helos       []helo
	mails       []receivedMail
}

type helo struct {
	Name    string
	Secured bool
}

type serverOption func(*testServer)

func withStartTLS(cert tls.Certificate) serverOption {
	return func(s *testServer) { s.cert = &cert }
}

func withAuth(login, password string) serverOption {
	return func(s *testServer) {
		s.login = login
		s.password = password
	}
}

func withRejectRcpt() serverOption {
	return func(s *testServer) { s.rejectRcpt = true }
}

func startTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "failed to listen")

	s := &testServer{listener: listener}
	for _, opt := range opts {
		opt(s)
	}

	go s.run()
	t.Cleanup(func() { _ = listener.Close() })
	return s
}

func (s *testServer) config() Config {
	return Config{
		Host:     "127.0.0.1",
		Port:     s.listener.Addr().(*net.TCPAddr).Port,
		Helo:     "client.test",
		Insecure: true,
		Timeout:  5 * time.Second,
	}
}

func (s *testServer) run() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.sessions++
		s.mu.Unlock()
		go s.handleConn(conn)
	}
}

func (s *testServer) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	reply := func(lines ...string) {
		for _, l := range lines {
			_, _ = writer.WriteString(l + "\r\n")
		}
		_ = writer.Flush()
	}

	secured := false
	var current receivedMail

	reply("220 localhost ESMTP Test Server")

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		upper := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(upper, "EHLO") || strings.HasPrefix(upper, "HELO"):
			s.mu.Lock()
			s.helos = append(s.helos, helo{Name: strings.TrimSpace(line[4:]), Secured: secured})
			s.mu.Unlock()
			lines := []string{"250-localhost"}
			if s.cert != nil && !secured {
				lines = append(lines, "250-STARTTLS")
			}
			if s.login != "" {
				lines = append(lines, "250-AUTH PLAIN")
			}
			lines = append(lines, "250 HELP")
			reply(lines...)
		case upper == "STARTTLS":
			if s.cert == nil {
				reply("502 Not implemented")
				continue
			}
			reply("220 Ready to start TLS")
			tlsConn := tls.Server(conn, &tls.Config{
				Certificates: []tls.Certificate{*s.cert},
				MinVersion:   tls.VersionTLS12,
			})
			if err := tlsConn.Handshake(); err != nil {
				return
			}
			conn = tlsConn
			reader = bufio.NewReader(tlsConn)
			writer = bufio.NewWriter(tlsConn)
			secured = true
		case strings.HasPrefix(upper, "AUTH PLAIN"):
			fields := strings.Fields(line)
			if len(fields) != 3 {
				reply("501 Syntax error")
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(fields[2])
			if err != nil {
				reply("501 Syntax error")
				continue
			}
			parts := strings.Split(string(raw), "\x00")
			if len(parts) == 3 && parts[1] == s.login && parts[2] == s.password {
				s.mu.Lock()
				s.authed = true
				s.authOverTLS = secured
				s.mu.Unlock()
				reply("235 Authentication successful")
			} else {
				reply("535 Authentication credentials invalid")
			}
		case strings.HasPrefix(upper, "MAIL FROM:"):
			current = receivedMail{From: extractPath(line)}
			reply("250 OK")
		case strings.HasPrefix(upper, "RCPT TO:"):
			if s.rejectRcpt {
				reply("550 No such user")
				continue
			}
			current.Recipients = append(current.Recipients, extractPath(line))
			reply("250 OK")
		case upper == "DATA":
			reply("354 End data with <CR><LF>.<CR><LF>")
			var data strings.Builder
			for {
				l, err := reader.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				data.WriteString(strings.TrimPrefix(l, "."))
			}
			current.Data = data.String()
			s.mu.Lock()
			s.mails = append(s.mails, current)
			s.mu.Unlock()
			reply("250 OK")
		case upper == "NOOP" || upper == "RSET":
			reply("250 OK")
		case upper == "QUIT":
			s.mu.Lock()
			s.quits++
			s.mu.Unlock()
			reply("221 Bye")
			return
		default:
			reply("500 Syntax error")
		}
	}
}

func extractPath(line string) string {
	start := strings.Index(line, "<")
	end := strings.Index(line, ">")
	if start < 0 || end < start {
		return ""
	}
	return line[start+1 : end]
}

func (s *testServer) received() []receivedMail {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]receivedMail, len(s.mails))
	copy(out, s.mails)
	return out
}

func (s *testServer) counts() (sessions, quits int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions, s.quits
}

func (s *testServer) wasAuthed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authed
}

func (s *testServer) wasAuthedOverTLS() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authOverTLS
}

func (s *testServer) greetings() []helo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]helo, len(s.helos))
	copy(out, s.helos)
	return out
}
