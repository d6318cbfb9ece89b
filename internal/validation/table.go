package validation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/arkilian/sortcheck/internal/errors"
	"github.com/arkilian/sortcheck/pkg/types"
)

// TableValidator checks the sort order of every file of every index of a table.
type TableValidator struct {
	catalog Catalog
	fs      Materializer
	reader  Reader
	opts    options
}

// NewTableValidator creates a table validator over the given collaborators.
func NewTableValidator(catalog Catalog, fs Materializer, reader Reader, opts ...Option) *TableValidator {
	return &TableValidator{
		catalog: catalog,
		fs:      fs,
		reader:  reader,
		opts:    newOptions(opts),
	}
}

// ValidateTable validates all indexes of schema.table and stops at the first error.
func (v *TableValidator) ValidateTable(ctx context.Context, schema, table string) error {
	log := v.opts.logger.With().Str("schema", schema).Str("table", table).Logger()

	t, err := v.catalog.GetTable(ctx, schema, table)
	if err != nil {
		return err
	}
	if t == nil {
		return errors.NewCatalogError(errors.CodeNotFound,
			fmt.Sprintf("table %s.%s not found", schema, table), nil)
	}

	indexes, err := v.catalog.GetTableIndexes(ctx, t.ID)
	if err != nil {
		return err
	}

	ids := make([]int64, len(indexes))
	for i, idx := range indexes {
		ids[i] = idx.ID
	}
	partitions, err := v.catalog.GetActivePartitionsAndChunks(ctx, ids)
	if err != nil {
		return err
	}
	if len(partitions) != len(indexes) {
		return errors.NewInternalError(
			fmt.Sprintf("catalog returned partitions for %d indexes, expected %d", len(partitions), len(indexes)), nil)
	}

	for i, idx := range indexes {
		files := indexFiles(partitions[i], t.Format)

		ilog := log.With().Int64("index_id", idx.ID).Str("index", idx.Name).Logger()
		ilog.Info().
			Int("sort_key_size", idx.SortKeySize).
			Int("files", len(files)).
			Msg("validating index")

		v.prefetch(ctx, files, ilog)
		if err := v.validateIndex(ctx, idx, files, ilog); err != nil {
			return err
		}

		ilog.Info().Msg("index ok")
	}
	return nil
}

func (v *TableValidator) validateIndex(ctx context.Context, idx types.Index, files []string, log zerolog.Logger) error {
	if v.opts.parallelism <= 1 || len(files) < 2 {
		for _, name := range files {
			if err := v.validateOne(ctx, idx, name, log); err != nil {
				return err
			}
		}
		return nil
	}

	p := pool.New().
		WithMaxGoroutines(v.opts.parallelism).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for _, name := range files {
		p.Go(func(ctx context.Context) error {
			return v.validateOne(ctx, idx, name, log)
		})
	}
	return p.Wait()
}

func (v *TableValidator) prefetch(ctx context.Context, files []string, log zerolog.Logger) {
	if !v.opts.prefetch || len(files) == 0 {
		return
	}
	p, ok := v.fs.(Prefetcher)
	if !ok {
		return
	}
	if err := p.Prefetch(ctx, files); err != nil {
		log.Warn().Err(err).Msg("prefetch failed")
	}
}

func (v *TableValidator) validateOne(ctx context.Context, idx types.Index, name string, log zerolog.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	local, err := v.fs.LocalFile(ctx, name)
	if err != nil {
		// Siblings cancelled by a failure elsewhere stay quiet.
		if ctx.Err() == nil {
			log.Error().Err(err).Str("file", name).Msg("failed to materialize file")
		}
		return err
	}
	defer v.fs.Release(name)

	res, err := validateFile(ctx, v.reader, local, idx.SortKeySize, log)
	if err != nil {
		return err
	}
	v.opts.stats.RecordFile(idx.ID, res.batches, res.rows)
	return nil
}

// indexFiles lists the files of one index in validation order: for each
// partition its partition file (if any), then its chunk files.
func indexFiles(parts []types.PartitionChunks, format types.FileFormat) []string {
	var files []string
	for _, pc := range parts {
		if name, ok := pc.Partition.FullName(format); ok {
			files = append(files, name)
		}
		for _, c := range pc.Chunks {
			files = append(files, c.FullName(format))
		}
	}
	return files
}
