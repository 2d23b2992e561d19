package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"trivia-live/internal/config"
	"trivia-live/internal/infra/objectstore"
	"trivia-live/internal/infra/postgres"
	"trivia-live/internal/logging"
	"trivia-live/internal/quizfile"
)

// NewImportCmd loads a CSV export into Postgres, or into the bucket library
// with --library.
func NewImportCmd(configPath *string) *cobra.Command {
	var (
		setID   string
		title   string
		library bool
	)
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import a QuizXpress CSV as a question set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)

			path := args[0]
			if setID == "" {
				setID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}
			if title == "" {
				title = setID
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			// Parse first so a broken file never reaches storage.
			questions, err := quizfile.NewParser().Parse(f)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			if library {
				if cfg.MinIO.Endpoint == "" {
					return fmt.Errorf("minio endpoint not configured")
				}
				client, err := objectstore.Connect(ctx, minioOptions(cfg), logger)
				if err != nil {
					return err
				}
				if _, err := f.Seek(0, io.SeekStart); err != nil {
					return err
				}
				info, err := f.Stat()
				if err != nil {
					return err
				}
				lib := objectstore.NewQuizLibrary(client, cfg.MinIO.Bucket, nil)
				if err := lib.Put(ctx, setID, f, info.Size()); err != nil {
					return err
				}
				logger.Info("question set uploaded", "set", setID, "questions", len(questions))
				return nil
			}

			if err := runMigrations(ctx, cfg, logger); err != nil {
				return err
			}
			db := postgres.OpenDB(cfg.Postgres.URL)
			defer db.Close()
			if err := postgres.NewQuestionStore(db).SaveQuestionSet(ctx, setID, title, questions); err != nil {
				return err
			}
			logger.Info("question set imported", "set", setID, "title", title, "questions", len(questions))
			return nil
		},
	}
	cmd.Flags().StringVar(&setID, "id", "", "question set id (defaults to the file name)")
	cmd.Flags().StringVar(&title, "title", "", "question set title")
	cmd.Flags().BoolVar(&library, "library", false, "upload the CSV to the object storage library instead of Postgres")
	return cmd
}

func minioOptions(cfg config.Config) objectstore.Options {
	return objectstore.Options{
		Endpoint:        cfg.MinIO.Endpoint,
		AccessKeyID:     cfg.MinIO.AccessKeyID,
		SecretAccessKey: cfg.MinIO.SecretAccessKey,
		UseSSL:          cfg.MinIO.UseSSL,
		Region:          cfg.MinIO.Region,
		Bucket:          cfg.MinIO.Bucket,
	}
}
