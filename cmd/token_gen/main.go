package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/technosupport/ts-vms-es/internal/auth"
	"github.com/technosupport/ts-vms-es/internal/config"
	"github.com/technosupport/ts-vms-es/internal/tokens"
)

func main() {
	key := flag.String("key", os.Getenv("JWT_SIGNING_KEY"), "Signing key (default $JWT_SIGNING_KEY)")
	subject := flag.String("sub", "operator", "Token subject")
	kind := flag.String("type", string(tokens.Access), "Token type: access or service")
	scopes := flag.String("scopes", strings.Join([]string{tokens.ScopeRead, tokens.ScopeWrite}, ","), "Comma separated scopes")
	ttl := flag.Duration("ttl", 12*time.Hour, "Token lifetime")
	revoke := flag.String("revoke", "", "Revoke the token with this jti instead of issuing one")
	redisAddr := flag.String("redis", "localhost:6379", "Redis address used by -revoke")
	flag.Parse()

	if *revoke != "" {
		rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
		defer rdb.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := auth.NewRedisRevocations(rdb).Revoke(ctx, *revoke, *ttl); err != nil {
			fmt.Fprintf(os.Stderr, "revoke %s: %v\n", *revoke, err)
			os.Exit(1)
		}
		fmt.Printf("revoked %s for %v\n", *revoke, *ttl)
		return
	}

	if *key == "" {
		*key = config.DevSigningKey
	}

	var granted []string
	for _, s := range strings.Split(*scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			granted = append(granted, s)
		}
	}

	token, err := tokens.NewManager(*key).Issue(*subject, tokens.TokenType(*kind), *ttl, granted...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
