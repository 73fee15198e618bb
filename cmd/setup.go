package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotlake/internal/models"
	"github.com/desertthunder/spotlake/internal/repositories"
	"github.com/desertthunder/spotlake/internal/shared"
)

// SetupConfig writes the embedded example config to --config.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)
	return nil
}

// SetupDatabase initializes the database and runs migrations.
//
// A missing config file is created from the template first.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if r.config == nil {
		if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
			r.logger.Info("config file not found, creating from template", "path", configPath)
			if err := shared.CreateConfigFile(configPath); err != nil {
				r.logger.Warn("failed to create config file, using defaults", "error", err)
			}
		}
	}

	ctx, cancel, err := r.prepare(ctx, cmd, "Database.Path")
	if err != nil {
		return err
	}
	defer cancel()

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	if dir := filepath.Dir(r.config.Database.Path); dir != "." && r.config.Database.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := r.database(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return nil
}

// LoadRules inserts the format rules in a JSON array file. Endpoints that already have a rule keep it.
func (r *Runner) LoadRules(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("file")
	if path == "" {
		return fmt.Errorf("%w: rules file", shared.ErrMissingArgument)
	}

	ctx, cancel, err := r.prepare(ctx, cmd, "Database.Path")
	if err != nil {
		return err
	}
	defer cancel()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rules file: %w", err)
	}
	var rules []models.FormatRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return fmt.Errorf("%w: rules file %s: %v", shared.ErrMalformedPayload, path, err)
	}
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return err
		}
	}

	db, err := r.database(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewFormatRuleRepository(db)
	var inserted, skipped int
	for _, rule := range rules {
		ok, err := repo.Put(ctx, rule)
		if err != nil {
			return err
		}
		if ok {
			inserted++
			r.logger.Debug("rule inserted", "endpoint", rule.Endpoint)
		} else {
			skipped++
			r.logger.Debug("rule exists, skipped", "endpoint", rule.Endpoint)
		}
	}
	return r.writePlain("loaded %d rule(s), %d already present\n", inserted, skipped)
}

// ListRules prints every format rule.
func (r *Runner) ListRules(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel, err := r.prepare(ctx, cmd, "Database.Path")
	if err != nil {
		return err
	}
	defer cancel()

	db, err := r.database(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	rules, err := repositories.NewFormatRuleRepository(db).List(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(rules, true)
	}
	for _, rule := range rules {
		if err := r.writePlain("%-22s %-8s %s\n", rule.Endpoint, rule.Category, rule.KeyFormat); err != nil {
			return err
		}
	}
	return nil
}

// LoadContracts upserts every *.json contract found under a directory tree.
func (r *Runner) LoadContracts(ctx context.Context, cmd *cli.Command) error {
	root := cmd.StringArg("dir")
	if root == "" {
		return fmt.Errorf("%w: contracts directory", shared.ErrMissingArgument)
	}

	ctx, cancel, err := r.prepare(ctx, cmd, "Database.Path")
	if err != nil {
		return err
	}
	defer cancel()

	var contracts []models.DataContract
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		dc, err := models.ParseDataContract(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		contracts = append(contracts, dc)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to read contracts: %w", err)
	}

	db, err := r.database(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewDataContractRepository(db)
	for _, dc := range contracts {
		if err := repo.Put(ctx, dc); err != nil {
			return err
		}
		r.logger.Debug("contract loaded", "key_name", dc.KeyName)
	}
	return r.writePlain("loaded %d contract(s)\n", len(contracts))
}

// ListContracts prints every data contract.
func (r *Runner) ListContracts(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel, err := r.prepare(ctx, cmd, "Database.Path")
	if err != nil {
		return err
	}
	defer cancel()

	db, err := r.database(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	contracts, err := repositories.NewDataContractRepository(db).List(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(contracts, true)
	}
	for _, dc := range contracts {
		if err := r.writePlain("%-24s %s\n", dc.KeyName, dc.Description); err != nil {
			return err
		}
	}
	return nil
}
