package testing

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	localexec "github.com/gea-smc/gea/internal/exec"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Handler runs one exec request and returns its exit status.
// ctx is cancelled when the client signals or closes the channel.
type Handler func(ctx context.Context, cmd string, stdin io.Reader, stdout, stderr io.Writer) int

// ServerConfig configures an in-process SSH server.
type ServerConfig struct {
	User     string
	Password string

	// AuthorizedKey enables public key auth for this key.
	AuthorizedKey ssh.PublicKey

	// Handler defaults to a handler that exits 0 without output.
	Handler Handler

	// Silent accepts TCP connections but never speaks SSH.
	Silent bool
}

// Server is an SSH server on 127.0.0.1 for tests.
type Server struct {
	cfg      ServerConfig
	listener net.Listener
	hostKey  ssh.Signer
	config   *ssh.ServerConfig

	wg    sync.WaitGroup
	mu    sync.Mutex
	conns map[net.Conn]struct{}

	commands []string
	execs    atomic.Int64
	authFail atomic.Int64
}

// NewServer starts a server on a random local port.
func NewServer(cfg ServerConfig) (*Server, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	hostKey, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, err
	}

	if cfg.Handler == nil {
		cfg.Handler = func(context.Context, string, io.Reader, io.Writer, io.Writer) int { return 0 }
	}

	s := &Server{
		cfg:     cfg,
		hostKey: hostKey,
		conns:   make(map[net.Conn]struct{}),
	}

	s.config = &ssh.ServerConfig{}
	if cfg.Password != "" {
		s.config.PasswordCallback = func(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if meta.User() == cfg.User && string(password) == cfg.Password {
				return nil, nil
			}
			s.authFail.Add(1)
			return nil, fmt.Errorf("password rejected for %s", meta.User())
		}
	}
	if cfg.AuthorizedKey != nil {
		want := cfg.AuthorizedKey.Marshal()
		s.config.PublicKeyCallback = func(meta ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if meta.User() == cfg.User && string(key.Marshal()) == string(want) {
				return nil, nil
			}
			return nil, fmt.Errorf("key rejected for %s", meta.User())
		}
	}
	s.config.AddHostKey(hostKey)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s.listener = listener

	s.wg.Add(1)
	go s.serve()
	return s, nil
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Host returns the listen IP.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the listen port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	n, _ := strconv.Atoi(port)
	return n
}

// HostKey returns the server's public host key.
func (s *Server) HostKey() ssh.PublicKey {
	return s.hostKey.PublicKey()
}

// KnownHostsLine returns a known_hosts entry trusting this server.
func (s *Server) KnownHostsLine() string {
	return knownhosts.Line([]string{knownhosts.Normalize(s.Addr())}, s.HostKey())
}

// ExecCount returns how many exec requests were handled.
func (s *Server) ExecCount() int {
	return int(s.execs.Load())
}

// Commands returns every command received, in arrival order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// AuthFailures returns how many password attempts were rejected.
func (s *Server) AuthFailures() int {
	return int(s.authFail.Load())
}

// Close stops the listener, drops every connection and waits for handlers.
func (s *Server) Close() error {
	err := s.listener.Close()

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				conn.Close()
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
			}()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	if s.cfg.Silent {
		_, _ = io.Copy(io.Discard, conn)
		return
	}

	sconn, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		return
	}
	defer sconn.Close()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ssh.DiscardRequests(reqs)
	}()

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "only sessions are supported")
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleSession(ch, chReqs)
		}()
	}
}

func (s *Server) handleSession(ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer ch.Close()

	for req := range reqs {
		if req.Type != "exec" {
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
			continue
		}

		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			continue
		}
		_ = req.Reply(true, nil)

		s.execs.Add(1)
		s.mu.Lock()
		s.commands = append(s.commands, payload.Command)
		s.mu.Unlock()

		ctx, cancel := context.WithCancel(context.Background())
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for r := range reqs {
				if r.Type == "signal" {
					cancel()
				}
				if r.WantReply {
					_ = r.Reply(false, nil)
				}
			}
			cancel()
		}()

		code := s.cfg.Handler(ctx, payload.Command, ch, ch, ch.Stderr())
		cancel()

		status := struct{ Status uint32 }{uint32(code)}
		_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(&status))
		return
	}
}

// ShellHandler runs every command through /bin/sh inside dir.
func ShellHandler(dir string) Handler {
	client := localexec.NewLocalClient(dir)
	return func(ctx context.Context, cmd string, stdin io.Reader, stdout, stderr io.Writer) int {
		out, errOut, code, err := client.ExecInput(ctx, cmd, stdin)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 255
		}
		_, _ = stdout.Write(out)
		_, _ = stderr.Write(errOut)
		return code
	}
}

// HangHandler blocks until the client gives up.
func HangHandler() Handler {
	return func(ctx context.Context, _ string, _ io.Reader, _, _ io.Writer) int {
		<-ctx.Done()
		return 137
	}
}
