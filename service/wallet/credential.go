package wallet

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// SecretKeySize is the decoded length of a Solana keypair: 32-byte seed followed by
// the 32-byte public key.
const SecretKeySize = ed25519.PrivateKeySize

var (
	// ErrInvalidCredential is the kind for unusable secret key material.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrInvalidEndpoint is the kind for a malformed RPC endpoint.
	ErrInvalidEndpoint = errors.New("invalid endpoint")
)

// ConfigError reports why a credential could not be loaded.
// Kind is ErrInvalidCredential or ErrInvalidEndpoint.
type ConfigError struct {
	Kind  error
	Cause error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return e.Kind.Error()
}

func (e *ConfigError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// CredentialConfig is the raw configuration a Credential is loaded from.
// Exactly one of PrivateKey and PrivateKeyFile must be set.
type CredentialConfig struct {
	PrivateKey     string // base58-encoded 64-byte keypair
	PrivateKeyFile string // solana-keygen JSON file
	RPCEndpoint    string
}

// Credential is the signing key and RPC endpoint used to submit transactions.
// It is read-only after Load and safe to share between goroutines.
// It deliberately does not render its secret in logs or format strings.
type Credential struct {
	key      solana.PrivateKey
	pub      solana.PublicKey
	endpoint *url.URL
}

// Load validates cfg and returns the credential.
func Load(cfg CredentialConfig) (*Credential, error) {
	endpoint, err := parseEndpoint(cfg.RPCEndpoint)
	if err != nil {
		return nil, &ConfigError{Kind: ErrInvalidEndpoint, Cause: err}
	}

	var key solana.PrivateKey
	switch {
	case cfg.PrivateKey != "" && cfg.PrivateKeyFile != "":
		return nil, &ConfigError{Kind: ErrInvalidCredential, Cause: fmt.Errorf("set only one of private key and private key file")}
	case cfg.PrivateKey != "":
		key, err = decodeBase58Key(cfg.PrivateKey)
	case cfg.PrivateKeyFile != "":
		key, err = readKeygenFile(cfg.PrivateKeyFile)
	default:
		err = fmt.Errorf("no private key configured")
	}
	if err != nil {
		return nil, &ConfigError{Kind: ErrInvalidCredential, Cause: err}
	}

	return &Credential{
		key:      key,
		pub:      key.PublicKey(),
		endpoint: endpoint,
	}, nil
}

// MustLoad is like Load but panics if the credential is invalid.
func MustLoad(cfg CredentialConfig) *Credential {
	cred, err := Load(cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to load credential: %v", err))
	}
	return cred
}

// NewCredential wraps an already-decoded key. It applies the same validation as Load.
func NewCredential(key solana.PrivateKey, rpcEndpoint string) (*Credential, error) {
	endpoint, err := parseEndpoint(rpcEndpoint)
	if err != nil {
		return nil, &ConfigError{Kind: ErrInvalidEndpoint, Cause: err}
	}
	if err := validateKey(key); err != nil {
		return nil, &ConfigError{Kind: ErrInvalidCredential, Cause: err}
	}
	return &Credential{
		key:      append(solana.PrivateKey(nil), key...),
		pub:      key.PublicKey(),
		endpoint: endpoint,
	}, nil
}

// PublicKey returns the account that pays for and signs transfers.
func (c *Credential) PublicKey() solana.PublicKey {
	return c.pub
}

// Endpoint returns the RPC endpoint URL as a string.
func (c *Credential) Endpoint() string {
	return c.endpoint.String()
}

// EndpointHost returns the endpoint host, safe to use as a metrics label.
// Query strings often carry API keys and are never exposed here.
func (c *Credential) EndpointHost() string {
	return c.endpoint.Hostname()
}

// Signer returns the key lookup used by solana.Transaction.Sign.
// Only the credential's own public key resolves.
func (c *Credential) Signer() func(solana.PublicKey) *solana.PrivateKey {
	return func(pub solana.PublicKey) *solana.PrivateKey {
		if pub.Equals(c.pub) {
			return &c.key
		}
		return nil
	}
}

// String renders the credential without its secret.
func (c *Credential) String() string {
	return fmt.Sprintf("Credential{pubkey=%s endpoint=%s}", c.pub, c.EndpointHost())
}

// LogValue keeps the secret out of structured logs.
func (c *Credential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("pubkey", c.pub.String()),
		slog.String("endpoint", c.EndpointHost()),
	)
}

func parseEndpoint(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("RPC endpoint is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse RPC endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("RPC endpoint scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("RPC endpoint has no host")
	}
	return u, nil
}

func decodeBase58Key(encoded string) (solana.PrivateKey, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("private key is not valid base58")
	}
	key := solana.PrivateKey(raw)
	if err := validateKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

func readKeygenFile(path string) (solana.PrivateKey, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key file: %w", err)
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFileBytes(content)
	if err != nil {
		return nil, fmt.Errorf("parse private key file: %w", err)
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

// validateKey checks the decoded size and that the stored public half matches the seed.
// Error messages never include key bytes.
func validateKey(key solana.PrivateKey) error {
	if len(key) != SecretKeySize {
		return fmt.Errorf("private key must decode to %d bytes, got %d", SecretKeySize, len(key))
	}
	derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	if !ed25519.PublicKey(derived[ed25519.SeedSize:]).Equal(ed25519.PublicKey(key[ed25519.SeedSize:])) {
		return fmt.Errorf("private key public half does not match its seed")
	}
	return nil
}
