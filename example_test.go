package shelfauth_test

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/shelfauth"
	"github.com/MrEthical07/shelfauth/directory"
	"github.com/MrEthical07/shelfauth/identity"
)

// ExampleNew shows engine construction with production-style dependencies.
func ExampleNew() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})

	cfg := shelfauth.DefaultConfig()
	cfg.Identity.ClientID = "1234.apps.googleusercontent.com"
	cfg.JWT.PrivateKey = []byte("...ed25519 private key PEM...")
	cfg.JWT.PublicKey = []byte("...ed25519 public key PEM...")

	dir, _ := directory.OpenSQLite("shelfauth.db")

	engine, _ := shelfauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithDirectory(dir).
		Build()
	_ = engine
}

// ExampleEngine_LoginResult runs login, one rotation and a replay of the
// consumed refresh token against the in-memory backend.
func ExampleEngine_LoginResult() {
	cfg := shelfauth.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("example-secret-example-secret-32b")
	cfg.Identity.ClientID = "example-client"
	cfg.Cache.Backend = shelfauth.CacheBackendMemory

	google := identity.VerifierFunc(func(_ context.Context, raw string) (identity.Principal, error) {
		sub, ok := strings.CutPrefix(raw, "google:")
		if !ok {
			return identity.Principal{}, identity.ErrInvalidAssertion
		}
		return identity.Principal{SubjectID: sub, Email: sub + "@example.com"}, nil
	})

	engine, err := shelfauth.New().WithConfig(cfg).WithVerifier(google).Build()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer engine.Close()
	ctx := context.Background()

	login := engine.LoginResult(ctx, "google:ada")
	fmt.Println("login:", login.Outcome, login.Session.Principal.SubjectID)

	rotated := engine.RefreshResult(ctx, login.Session.RefreshToken)
	fmt.Println("refresh:", rotated.Outcome)

	replay := engine.RefreshResult(ctx, login.Session.RefreshToken)
	fmt.Println("replay:", replay.Outcome)

	bad := engine.LoginResult(ctx, "forged")
	fmt.Println("forged:", bad.Outcome)

	// Output:
	// login: ok ada
	// refresh: ok
	// replay: invalid_refresh_token
	// forged: invalid_assertion
}

// ExampleEngine_MetricsSnapshot shows how to read in-process counters.
func ExampleEngine_MetricsSnapshot() {
	var engine *shelfauth.Engine
	snapshot := engine.MetricsSnapshot()
	fmt.Println(snapshot.Counters[shelfauth.MetricLoginSuccess])
	// Output: 0
}
