package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/net/proxy"

	cerrors "github.com/coral-mesh/whotalks/internal/errors"
	"github.com/coral-mesh/whotalks/internal/retry"
	"github.com/coral-mesh/whotalks/internal/safe"
)

// NativeConfig configures NativeRunner.
type NativeConfig struct {
	// KnownHostsFile verifies host keys. Required unless InsecureIgnoreHostKey.
	KnownHostsFile string
	// InsecureIgnoreHostKey disables host key verification.
	InsecureIgnoreHostKey bool
	// IdentityFiles are unencrypted private keys tried after the ssh-agent.
	IdentityFiles []string
	// AgentSocket is the ssh-agent socket, usually $SSH_AUTH_SOCK.
	AgentSocket string
	// DialTimeout bounds the TCP connect and SSH handshake.
	DialTimeout time.Duration
	// Retry controls how often dialing is attempted.
	Retry retry.Config
}

// NativeRunner runs commands over a single SSH connection, one session per command.
type NativeRunner struct {
	client    *ssh.Client
	agentConn net.Conn
	target    Target
	logger    zerolog.Logger
}

// DialNative connects to target and returns a ready runner.
func DialNative(ctx context.Context, target Target, cfg NativeConfig, logger zerolog.Logger) (*NativeRunner, error) {
	logger = logger.With().Str("component", "ssh_native").Str("target", target.String()).Logger()

	hostKeyCallback, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, err
	}

	auth, agentConn := authMethods(cfg, logger)
	if len(auth) == 0 {
		return nil, fmt.Errorf("no SSH credentials: start an ssh-agent or configure identity files")
	}

	clientCfg := &ssh.ClientConfig{
		User:            target.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         cfg.DialTimeout,
	}

	retryCfg := cfg.Retry
	if retryCfg.OnRetry == nil {
		retryCfg.OnRetry = func(attempt int, err error) {
			logger.Debug().Err(err).Int("attempt", attempt).Msg("SSH dial failed, retrying")
		}
	}

	var client *ssh.Client
	err = retry.Do(ctx, retryCfg, func() error {
		c, err := dial(ctx, target.Address(), clientCfg)
		if err != nil {
			return err
		}
		client = c
		return nil
	}, isTransientDialError)
	if err != nil {
		if agentConn != nil {
			_ = agentConn.Close()
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}

	logger.Debug().Msg("SSH connection established")

	return &NativeRunner{
		client:    client,
		agentConn: agentConn,
		target:    target,
		logger:    logger,
	}, nil
}

func dial(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	conn, err := dialContext(ctx, proxy.FromEnvironmentUsing(&net.Dialer{Timeout: cfg.Timeout}), addr)
	if err != nil {
		return nil, err
	}

	if cfg.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(cfg.Timeout))
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(sshConn, chans, reqs), nil
}

// dialContext connects through the SOCKS proxy named by ALL_PROXY unless
// NO_PROXY exempts addr.
func dialContext(ctx context.Context, d proxy.Dialer, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, "tcp", addr)
	}
	return d.Dial("tcp", addr)
}

// isTransientDialError retries network failures but not authentication or
// host key mismatches, which will not fix themselves.
func isTransientDialError(err error) bool {
	var keyErr *knownhosts.KeyError
	if errors.As(err, &keyErr) {
		return false
	}
	if strings.Contains(err.Error(), "unable to authenticate") {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, io.EOF)
}

func hostKeyCallback(cfg NativeConfig) (ssh.HostKeyCallback, error) {
	if cfg.InsecureIgnoreHostKey {
		//nolint:gosec // G106: explicitly requested by the operator.
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if cfg.KnownHostsFile == "" {
		return nil, fmt.Errorf("no known_hosts file configured")
	}
	cb, err := knownhosts.New(cfg.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts %s: %w", cfg.KnownHostsFile, err)
	}
	return cb, nil
}

// authMethods collects ssh-agent signers and unencrypted identity files.
func authMethods(cfg NativeConfig, logger zerolog.Logger) ([]ssh.AuthMethod, net.Conn) {
	var methods []ssh.AuthMethod
	var agentConn net.Conn

	if cfg.AgentSocket != "" {
		conn, err := net.Dial("unix", cfg.AgentSocket)
		if err != nil {
			logger.Debug().Err(err).Str("socket", cfg.AgentSocket).Msg("ssh-agent unavailable")
		} else {
			agentConn = conn
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	var signers []ssh.Signer
	for _, path := range cfg.IdentityFiles {
		data, err := safe.ReadFile(path, &safe.ReadOptions{AllowSymlinks: true})
		if err != nil {
			if !os.IsNotExist(err) {
				logger.Debug().Err(err).Str("path", path).Msg("Skipping identity file")
			}
			continue
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			var missing *ssh.PassphraseMissingError
			if errors.As(err, &missing) {
				logger.Debug().Str("path", path).Msg("Skipping passphrase-protected identity, use ssh-agent")
			} else {
				logger.Debug().Err(err).Str("path", path).Msg("Skipping unparseable identity file")
			}
			continue
		}
		signers = append(signers, signer)
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	return methods, agentConn
}

// Run implements Runner.
func (r *NativeRunner) Run(ctx context.Context, command string) (string, error) {
	session, err := r.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to open session on %s: %w", r.target, err)
	}
	defer cerrors.DeferCloseIgnoring(r.logger, session, io.EOF, "failed to close SSH session")

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	r.logger.Debug().Str("command", command).Msg("Running remote command")

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				return "", fmt.Errorf("ssh %s %q failed: %w", r.target, command, err)
			}
			return "", fmt.Errorf("ssh %s %q failed: %w: %s", r.target, command, err, msg)
		}
	}

	return stdout.String(), nil
}

// Close implements Runner.
func (r *NativeRunner) Close() error {
	err := r.client.Close()
	if r.agentConn != nil {
		cerrors.DeferClose(r.logger, r.agentConn, "failed to close ssh-agent connection")
	}
	return err
}
