package main

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/upb/llm-router/app"
	"github.com/upb/llm-router/middleware"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an operator token for the admin endpoints",
	Long:  `Sign a bearer token with AUTH_JWT_SECRET so an operator can call DELETE /api/v1/strikes/{provider}.`,
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().String("subject", "operator", "Token subject")
	tokenCmd.Flags().String("role", "admin", "Role claim")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Lifetime of the token, 0 for no expiry")
}

func runToken(cmd *cobra.Command, args []string) error {
	subject, _ := cmd.Flags().GetString("subject")
	role, _ := cmd.Flags().GetString("role")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	return withDependencies(cmd, func(ctx context.Context, deps *app.Dependencies) error {
		if !deps.AuthMiddleware.Enabled() {
			return fmt.Errorf("AUTH_JWT_SECRET is not set: admin endpoints are open")
		}

		now := time.Now()
		claims := &middleware.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:       uuid.NewString(),
				Subject:  subject,
				IssuedAt: jwt.NewNumericDate(now),
			},
			Role: role,
		}
		if ttl > 0 {
			claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
		}

		token, err := deps.AuthMiddleware.IssueToken(claims)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	})
}
