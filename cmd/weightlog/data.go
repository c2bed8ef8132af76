package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"weightlog/internal/app"
	"weightlog/internal/domain"
)

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	var items []domain.WeightWithDate
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("parse import file: %w", err)
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	user, err := st.users.GetByUsername(ctx, importUser)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %q not found", importUser)
	}

	n, err := app.NewWeightService(st.weights).Import(ctx, user.ID, items, importUnit)
	if err != nil {
		return fmt.Errorf("import stopped after %d of %d entries: %w", n, len(items), err)
	}
	logger.Info("import complete", zap.String("user", importUser), zap.Int("imported", n))
	return nil
}

func runCreateUser(cmd *cobra.Command, args []string) error {
	password := createPassword
	if password == "" {
		password = os.Getenv("WEIGHTLOG_PASSWORD")
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	u, err := app.NewAuthService(st.users, st.sessions).CreateUser(cmd.Context(), createUsername, password)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	logger.Info("user created", zap.String("user", u.Username), zap.Int64("id", u.ID))
	return nil
}
