package tools

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/forgewell/acengine/core"
)

// AuthMethod is how a client authenticates to the tool layer (spec §4.8).
type AuthMethod string

const (
	AuthNone        AuthMethod = "none"
	AuthAPIKey      AuthMethod = "api_key"
	AuthBearerToken AuthMethod = "bearer_token"
)

// Permission is a tool-access level.
type Permission string

const (
	PermissionRead    Permission = "read"
	PermissionWrite   Permission = "write"
	PermissionExecute Permission = "execute"
	PermissionAdmin   Permission = "admin"
)

var allPermissions = map[Permission]struct{}{
	PermissionRead: {}, PermissionWrite: {}, PermissionExecute: {}, PermissionAdmin: {},
}

// AuthConfig configures the Authenticator.
type AuthConfig struct {
	Method      AuthMethod
	APIKeys     []string // plaintext keys; hashed at construction, never stored raw
	TokenSecret string
	Required    bool
}

// RateLimitConfig configures the token-bucket RateLimiter.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	BurstSize         int
}

// ToolPermission declares what a tool requires to be called.
type ToolPermission struct {
	ToolName            string
	RequiredPermissions map[Permission]struct{}
	AllowedRoles        map[string]struct{}
}

// AuthContext is the result of a successful (or anonymous) authentication.
type AuthContext struct {
	Authenticated bool
	ClientID      string
	Permissions   map[Permission]struct{}
	Roles         map[string]struct{}
}

func allPermissionsSet() map[Permission]struct{} {
	out := make(map[Permission]struct{}, len(allPermissions))
	for p := range allPermissions {
		out[p] = struct{}{}
	}
	return out
}

// RateLimiter is a per-client token bucket (spec §4.8, burst_size
// capacity, requests_per_minute/60 refill rate).
type RateLimiter struct {
	rate      float64 // tokens per second
	burstSize float64
	mu        sync.Mutex
	buckets   map[string]bucketState
}

type bucketState struct {
	tokens     float64
	lastUpdate time.Time
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		rate:      float64(cfg.RequestsPerMinute) / 60.0,
		burstSize: float64(cfg.BurstSize),
		buckets:   make(map[string]bucketState),
	}
}

// Check consumes one token for clientID, returning false if the
// bucket is empty (rate limited).
func (rl *RateLimiter) Check(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	state, ok := rl.buckets[clientID]
	if !ok {
		state = bucketState{tokens: rl.burstSize, lastUpdate: now}
	}

	elapsed := now.Sub(state.lastUpdate).Seconds()
	tokens := state.tokens + elapsed*rl.rate
	if tokens > rl.burstSize {
		tokens = rl.burstSize
	}

	if tokens >= 1 {
		rl.buckets[clientID] = bucketState{tokens: tokens - 1, lastUpdate: now}
		return true
	}
	rl.buckets[clientID] = bucketState{tokens: tokens, lastUpdate: now}
	return false
}

// Reset clears a client's bucket.
func (rl *RateLimiter) Reset(clientID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, clientID)
}

// Authenticator validates credentials per AuthConfig.Method.
type Authenticator struct {
	config     AuthConfig
	hashedKeys map[string]struct{}
}

func NewAuthenticator(cfg AuthConfig) *Authenticator {
	hashed := make(map[string]struct{}, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		hashed[hashAPIKey(k)] = struct{}{}
	}
	return &Authenticator{config: cfg, hashedKeys: hashed}
}

func hashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Authenticate validates credentials (a flat string map so both
// api_key and bearer_token shapes fit without a union type).
func (a *Authenticator) Authenticate(credentials map[string]string) (AuthContext, error) {
	if a.config.Method == AuthNone {
		return AuthContext{Authenticated: !a.config.Required, Permissions: allPermissionsSet()}, nil
	}

	if len(credentials) == 0 {
		if a.config.Required {
			return AuthContext{}, core.New("tools.Authenticate", core.KindAuth, core.ErrInvalidInput)
		}
		return AuthContext{Authenticated: false}, nil
	}

	switch a.config.Method {
	case AuthAPIKey:
		return a.authenticateAPIKey(credentials)
	case AuthBearerToken:
		return a.authenticateToken(credentials)
	default:
		return AuthContext{}, core.Newf("tools.Authenticate", core.KindAuth, "unknown auth method %q", a.config.Method)
	}
}

func (a *Authenticator) authenticateAPIKey(credentials map[string]string) (AuthContext, error) {
	key := credentials["api_key"]
	if key == "" {
		return AuthContext{}, core.Newf("tools.Authenticate", core.KindAuth, "api key required")
	}
	hashed := hashAPIKey(key)
	if _, ok := a.hashedKeys[hashed]; !ok {
		return AuthContext{}, core.Newf("tools.Authenticate", core.KindAuth, "invalid api key")
	}
	return AuthContext{Authenticated: true, ClientID: hashed[:16], Permissions: allPermissionsSet()}, nil
}

// authenticateToken validates a "client_id:timestamp:signature" bearer
// token: HMAC-SHA256 over "client_id:timestamp" with TokenSecret,
// compared in constant time, with a 60s future-skew allowance and a
// 3600s expiry window (spec §4.8, matching the original's token format).
func (a *Authenticator) authenticateToken(credentials map[string]string) (AuthContext, error) {
	token := credentials["token"]
	if token == "" {
		return AuthContext{}, core.Newf("tools.Authenticate", core.KindAuth, "bearer token required")
	}
	if a.config.TokenSecret == "" {
		return AuthContext{}, core.Newf("tools.Authenticate", core.KindAuth, "token validation not configured")
	}

	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return AuthContext{}, core.Newf("tools.Authenticate", core.KindAuth, "invalid token format")
	}
	clientID, timestampStr, signature := parts[0], parts[1], parts[2]

	mac := hmac.New(sha256.New, []byte(a.config.TokenSecret))
	fmt.Fprintf(mac, "%s:%s", clientID, timestampStr)
	expected := hex.EncodeToString(mac.Sum(nil))

	if subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) != 1 {
		return AuthContext{}, core.Newf("tools.Authenticate", core.KindAuth, "invalid token signature")
	}

	timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
	if err != nil {
		return AuthContext{}, core.Newf("tools.Authenticate", core.KindAuth, "invalid token timestamp")
	}
	now := time.Now().Unix()
	if timestamp > now+60 {
		return AuthContext{}, core.Newf("tools.Authenticate", core.KindAuth, "token timestamp is in the future")
	}
	if now-timestamp > 3600 {
		return AuthContext{}, core.New("tools.Authenticate", core.KindAuth, core.ErrTimeout)
	}

	return AuthContext{Authenticated: true, ClientID: clientID, Permissions: allPermissionsSet()}, nil
}

// Authorizer checks per-tool permission/role requirements.
type Authorizer struct {
	toolPermissions map[string]ToolPermission
}

func NewAuthorizer() *Authorizer {
	return &Authorizer{toolPermissions: make(map[string]ToolPermission)}
}

func (a *Authorizer) RegisterToolPermission(p ToolPermission) {
	a.toolPermissions[p.ToolName] = p
}

// Authorize checks authCtx against toolName's registered requirements.
// A tool with no registered requirement allows any authenticated
// caller (spec §4.8).
func (a *Authorizer) Authorize(toolName string, authCtx AuthContext) error {
	perm, ok := a.toolPermissions[toolName]
	if !ok {
		if authCtx.Authenticated {
			return nil
		}
		return core.Newf("tools.Authorize", core.KindAuth, "authentication required for tool: %s", toolName)
	}

	for required := range perm.RequiredPermissions {
		if _, ok := authCtx.Permissions[required]; !ok {
			return core.Newf("tools.Authorize", core.KindAuth, "missing permission %q for tool %s", required, toolName)
		}
	}

	if len(perm.AllowedRoles) > 0 {
		allowed := false
		for role := range authCtx.Roles {
			if _, ok := perm.AllowedRoles[role]; ok {
				allowed = true
				break
			}
		}
		if !allowed {
			return core.Newf("tools.Authorize", core.KindAuth, "role not authorized for tool: %s", toolName)
		}
	}
	return nil
}

// InputValidator rejects tool arguments carrying dangerous patterns
// (spec §4.8: a fixed deny-list, not a sandboxed execution guarantee).
type InputValidator struct {
	custom map[string]func(map[string]interface{}) error
}

func NewInputValidator() *InputValidator {
	return &InputValidator{custom: make(map[string]func(map[string]interface{}) error)}
}

func (v *InputValidator) RegisterValidator(toolName string, fn func(map[string]interface{}) error) {
	v.custom[toolName] = fn
}

var dangerousPatterns = []string{
	"__import__", "subprocess", "os.popen", "os.system",
	"eval(", "exec(", "compile(", "open(",
}
var pathTraversalPatterns = []string{"../", `..\`}
var shellMetacharacters = []string{";", "|", "&&", "||"}

func (v *InputValidator) Validate(toolName string, args map[string]interface{}) error {
	for key, value := range args {
		s, ok := value.(string)
		if !ok {
			continue
		}
		for _, p := range dangerousPatterns {
			if strings.Contains(s, p) {
				return core.Newf("tools.Validate", core.KindValidation, "potentially dangerous input in %s: %s", key, p)
			}
		}
		for _, p := range pathTraversalPatterns {
			if strings.Contains(s, p) {
				return core.Newf("tools.Validate", core.KindValidation, "path traversal detected in %s", key)
			}
		}
		for _, c := range shellMetacharacters {
			if strings.Contains(s, c) {
				return core.Newf("tools.Validate", core.KindValidation, "shell metacharacter detected in %s: %s", key, c)
			}
		}
	}

	if fn, ok := v.custom[toolName]; ok {
		if err := fn(args); err != nil {
			return core.New("tools.Validate", core.KindValidation, err)
		}
	}
	return nil
}

// SecurityLayer combines authentication, rate limiting, authorization,
// and input validation into the single gate every tool invocation
// passes through (spec §4.8), in that order.
type SecurityLayer struct {
	authenticator *Authenticator
	authorizer    *Authorizer
	validator     *InputValidator
	rateLimiter   *RateLimiter
}

func NewSecurityLayer(authCfg AuthConfig, rateCfg RateLimitConfig) *SecurityLayer {
	sl := &SecurityLayer{
		authenticator: NewAuthenticator(authCfg),
		authorizer:    NewAuthorizer(),
		validator:     NewInputValidator(),
	}
	if rateCfg.Enabled {
		sl.rateLimiter = NewRateLimiter(rateCfg)
	}
	return sl
}

func (sl *SecurityLayer) RegisterToolPermission(p ToolPermission) { sl.authorizer.RegisterToolPermission(p) }
func (sl *SecurityLayer) RegisterValidator(toolName string, fn func(map[string]interface{}) error) {
	sl.validator.RegisterValidator(toolName, fn)
}

// CheckRequest runs the full security pipeline for one tool call,
// returning the resolved AuthContext if every check passes.
func (sl *SecurityLayer) CheckRequest(toolName string, args map[string]interface{}, credentials map[string]string) (AuthContext, error) {
	authCtx, err := sl.authenticator.Authenticate(credentials)
	if err != nil {
		return AuthContext{}, err
	}

	if sl.rateLimiter != nil && authCtx.ClientID != "" && !sl.rateLimiter.Check(authCtx.ClientID) {
		return AuthContext{}, core.New("tools.CheckRequest", core.KindTool, core.ErrMaxRetriesExceeded).WithID(authCtx.ClientID)
	}

	if err := sl.authorizer.Authorize(toolName, authCtx); err != nil {
		return AuthContext{}, err
	}

	if err := sl.validator.Validate(toolName, args); err != nil {
		return AuthContext{}, err
	}

	return authCtx, nil
}
