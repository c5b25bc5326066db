package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/d60-Lab/chirper/config"
	"github.com/d60-Lab/chirper/pkg/jwt"
)

// token 签发调试用的 bearer token；认证服务不在本仓库
func newTokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "issue a bearer token for a user id",
		Flags: []cli.Flag{
			&cli.UintFlag{Name: "user", Required: true, Usage: "user id"},
			&cli.DurationFlag{Name: "ttl", Usage: "override jwt.ttl"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			ttl := cfg.JWT.TTL
			if d := c.Duration("ttl"); d > 0 {
				ttl = d
			}
			tok, err := jwt.GenerateToken(cfg.JWT.Secret, c.Uint("user"), ttl)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			_, _ = fmt.Fprintln(c.App.Writer, tok)
			return nil
		},
	}
}
