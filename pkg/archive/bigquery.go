package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// RecordInserter abstracts the audit sink so the archiver can be tested
// against a fake.
type RecordInserter interface {
	InsertBatch(ctx context.Context, records []*Record) error
	Close() error
}

// BigQueryConfig holds configuration for the audit table.
type BigQueryConfig struct {
	DatasetID       string
	TableID         string
	CredentialsFile string // Optional: path to a service account JSON file.
}

// NewBigQueryClient creates a BigQuery client suitable for production
// environments.
func NewBigQueryClient(ctx context.Context, projectID, credentialsFile string, logger zerolog.Logger) (*bigquery.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
		logger.Info().Str("credentials_file", credentialsFile).Msg("Using specified credentials file for BigQuery client.")
	} else {
		logger.Info().Msg("Using Application Default Credentials (ADC) for BigQuery client.")
	}

	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}
	return client, nil
}

// BigQueryInserter implements RecordInserter over a BigQuery table.
type BigQueryInserter struct {
	table    *bigquery.Table
	inserter *bigquery.Inserter
	logger   zerolog.Logger
}

// NewBigQueryInserter creates an inserter for the audit table. If the table
// does not exist it is created with a schema inferred from Record, which
// removes the need for manual table creation on first deploy.
func NewBigQueryInserter(ctx context.Context, client *bigquery.Client, cfg *BigQueryConfig, logger zerolog.Logger) (*BigQueryInserter, error) {
	if client == nil {
		return nil, errors.New("bigquery client cannot be nil")
	}
	if cfg == nil {
		return nil, errors.New("BigQueryConfig cannot be nil")
	}

	logger = logger.With().
		Str("component", "BigQueryInserter").
		Str("dataset_id", cfg.DatasetID).
		Str("table_id", cfg.TableID).
		Logger()

	tableRef := client.Dataset(cfg.DatasetID).Table(cfg.TableID)
	_, err := tableRef.Metadata(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "notFound") {
			logger.Warn().Msg("Audit table not found. Attempting to create with inferred schema.")
			inferredSchema, inferErr := bigquery.InferSchema(Record{})
			if inferErr != nil {
				return nil, fmt.Errorf("failed to infer audit record schema: %w", inferErr)
			}
			if createErr := tableRef.Create(ctx, &bigquery.TableMetadata{Schema: inferredSchema}); createErr != nil {
				return nil, fmt.Errorf("failed to create audit table %s.%s: %w", cfg.DatasetID, cfg.TableID, createErr)
			}
			logger.Info().Msg("Audit table created successfully.")
		} else {
			return nil, fmt.Errorf("failed to get audit table metadata: %w", err)
		}
	}

	return &BigQueryInserter{
		table:    tableRef,
		inserter: tableRef.Inserter(),
		logger:   logger,
	}, nil
}

// InsertBatch streams a batch of audit rows to the table. Row-level failures
// are logged individually; any failure returns an error wrapping the
// underlying PutMultiError.
func (i *BigQueryInserter) InsertBatch(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}

	err := i.inserter.Put(ctx, records)
	if err != nil {
		i.logger.Error().Err(err).Int("batch_size", len(records)).Msg("Failed to insert audit rows.")
		var multiErr bigquery.PutMultiError
		if errors.As(err, &multiErr) {
			for _, rowErr := range multiErr {
				i.logger.Error().Int("row_index", rowErr.RowIndex).Msgf("Audit insert error for row: %v", rowErr.Errors)
			}
		}
		return fmt.Errorf("bigquery Inserter.Put failed: %w", err)
	}

	i.logger.Debug().Int("batch_size", len(records)).Msg("Audit batch inserted.")
	return nil
}

// Close is a no-op; the BigQuery client's lifecycle is managed externally.
func (i *BigQueryInserter) Close() error {
	return nil
}
