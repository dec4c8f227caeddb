// aclctl is an operator CLI for bulk-importing ACL rule and alias
// manifests from a directory of YAML files into storage.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/fenwall/aclcore/internal/acl"
	"github.com/fenwall/aclcore/internal/config"
	"github.com/fenwall/aclcore/internal/manifest"
	"github.com/fenwall/aclcore/internal/store"
	"github.com/fenwall/aclcore/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	dir := flag.String("dir", "", "directory of *.yaml/*.yml ACL rule and alias manifests to import")
	flag.Parse()
	if *dir == "" {
		return fmt.Errorf("-dir is required")
	}

	cfg, err := config.Load(os.Getenv("ACLCORE_CONFIG"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx := context.Background()
	db, err := store.Connect(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	manifests, err := manifest.NewParser().ParseDir(*dir)
	if err != nil {
		return fmt.Errorf("parse manifests: %w", err)
	}
	log.Info("parsed manifests", zap.Int("count", len(manifests)), zap.String("dir", *dir))

	resolver := store.NewNameResolver(db)
	result, err := manifest.NewEngine().Compile(manifests, resolver)
	if err != nil {
		return fmt.Errorf("compile manifests: %w", err)
	}

	aliasStore := store.NewAliasStore(db)
	ruleStore := store.NewRuleStore(db).WithActivityRecorder(store.NewLoggingActivityRecorder(log))

	aliasIDs := make(map[string]acl.ID, len(result.Aliases))
	for name, a := range result.Aliases {
		id, err := aliasStore.Create(ctx, a)
		if err != nil {
			return fmt.Errorf("import alias %s: %w", name, err)
		}
		aliasIDs[name] = id
		log.Info("imported alias", zap.String("name", name), zap.Int64("id", int64(id)))
	}

	for _, rule := range result.Rules {
		body, err := json.Marshal(rule)
		if err != nil {
			return fmt.Errorf("encode rule %s: %w", rule.Name, err)
		}

		record := &store.RuleRecord{
			Name:    rule.Name,
			Enabled: rule.Enabled,
			Expires: rule.Expires,
			Body:    body,
		}
		if err := ruleStore.Create(ctx, record); err != nil {
			return fmt.Errorf("import rule %s: %w", rule.Name, err)
		}

		for _, aliasName := range result.RuleAliases[rule.Name] {
			aliasID, ok := aliasIDs[aliasName]
			if !ok {
				return fmt.Errorf("rule %s references unknown alias %s", rule.Name, aliasName)
			}
			if err := aliasStore.AttachToRule(ctx, acl.ID(record.ID), aliasID); err != nil {
				return fmt.Errorf("attach alias %s to rule %s: %w", aliasName, rule.Name, err)
			}
		}

		log.Info("imported rule", zap.String("name", rule.Name), zap.Int64("id", record.ID))
	}

	log.Info("import complete", zap.Int("rules", len(result.Rules)), zap.Int("aliases", len(result.Aliases)))
	return nil
}
