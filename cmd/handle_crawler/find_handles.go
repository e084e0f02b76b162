package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/handle-crawler/internal/config"
	"github.com/jonathan/handle-crawler/internal/handles"
	"github.com/jonathan/handle-crawler/internal/observability"
	"github.com/jonathan/handle-crawler/internal/types"
)

var findHandlesCmd = &cobra.Command{
	Use:   "find-handles [file]",
	Short: "Extract handle mentions from text or from a member's profile",
	Long: "Scans text (a file, or stdin) for @handle and t.me/handle mentions and prints the distinct handles. " +
		"With --member, signs in to the directory and scans that member's detail page instead; " +
		"--classify additionally probes the handles and prints the resulting record.",
	Args: cobra.MaximumNArgs(1),
	RunE: runFindHandles,
}

var (
	findMember   string
	findClassify bool
	findURL      string
	findToken    string
)

func init() {
	findHandlesCmd.Flags().StringVarP(&findMember, "member", "m", "", "Directory nickname to scan")
	findHandlesCmd.Flags().BoolVar(&findClassify, "classify", false, "Probe found handles (with --member)")
	findHandlesCmd.Flags().StringVarP(&findURL, "url", "u", "", "Directory base URL (overrides config)")
	findHandlesCmd.Flags().StringVarP(&findToken, "token", "t", "", "Directory login token (overrides HANDLE_CRAWLER_TOKEN)")

	rootCmd.AddCommand(findHandlesCmd)
}

func runFindHandles(cmd *cobra.Command, args []string) error {
	if findMember == "" {
		return findInText(cmd, args)
	}

	cfg, err := loadConfig(cmd, func(f flagSet, cfg *config.Config) {
		if f.changed("url") {
			cfg.DirectoryURL = findURL
		}
		if f.changed("token") {
			cfg.Token = findToken
		}
	})
	if err != nil {
		return err
	}
	if cfg.DirectoryURL != "" {
		if cfg.Token, err = resolveToken(cfg.Token, os.Stdin, cmd.ErrOrStderr()); err != nil {
			return err
		}
	}
	if err := cfg.RequireDirectory(); err != nil {
		return err
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	sess, err := newAuthenticator(cfg, logger).Login(ctx, cfg.DirectoryURL, cfg.Token)
	if err != nil {
		return err
	}

	nickname := strings.TrimPrefix(findMember, "@")
	profile := types.ProfileFragment{FullName: nickname, Nickname: nickname}
	found, err := newFinder(cfg, logger).FindHandles(ctx, sess, profile)
	if err != nil {
		return err
	}

	if !findClassify {
		return printLines(cmd.OutOrStdout(), found)
	}

	classifier := newClassifier(cfg, logger)
	classified := make([]types.ClassifiedHandle, 0, len(found))
	for _, handle := range found {
		h, err := classifier.Classify(ctx, handle)
		if err != nil {
			logger.Warn().Err(err).Str("handle", handle).Msg("probe failed")
		}
		classified = append(classified, h)
	}

	rec, ok := types.NewMemberRecord(profile, classified)
	if !ok {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "no classified handles for @%s (%d found)\n", nickname, len(found))
		return nil
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintMemberRecord(rec)
	return nil
}

func findInText(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return printLines(cmd.OutOrStdout(), handles.Find(string(data)))
}

func printLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
