package etl

import (
	"context"
	"time"

	"github.com/teranos/legisync/batch"
	"github.com/teranos/legisync/errors"
	"github.com/teranos/legisync/logger"
)

// unit is one item and the operations that store it. A unit is never split
// across chunks.
type unit[T Keyed] struct {
	item T
	ops  []batch.Operation
}

func (r *run[E, T]) ceiling() int {
	c := r.jc.Settings.BatchSize
	if r.jc.Writer != nil && r.jc.Writer.MaxOps() < c {
		c = r.jc.Writer.MaxOps()
	}
	return c
}

func (r *run[E, T]) load(ctx context.Context, items []T) error {
	jc := r.jc

	units := make([]unit[T], 0, len(items))
	for _, item := range items {
		ops, err := r.job.Load(jc, item)
		if err != nil {
			jc.Stats.Load.Fail(1)
			jc.Stats.RecordError()
			jc.Logger.Warnw("Item excluded, building operations failed",
				logger.FieldEntity, item.Key().String(),
				logger.FieldError, err.Error(),
			)
			continue
		}
		units = append(units, unit[T]{item: item, ops: ops})
	}

	chunks := r.plan(units)

	switch {
	case jc.Options.DryRun:
		return r.dryRun(chunks)
	case jc.Options.Destination == DestinationLocalFiles:
		return r.export(chunks)
	default:
		r.commitAll(ctx, chunks)
		return nil
	}
}

// plan groups units into chunks of at most ceiling operations
func (r *run[E, T]) plan(units []unit[T]) [][]unit[T] {
	ceiling := r.ceiling()

	var (
		chunks  [][]unit[T]
		current []unit[T]
		size    int
	)
	for _, u := range units {
		if len(u.ops) > ceiling {
			r.jc.Stats.Load.Fail(1)
			r.jc.Stats.RecordError()
			r.jc.Logger.Warnw("Item excluded, too many operations for one commit",
				logger.FieldEntity, u.item.Key().String(),
				logger.FieldCount, len(u.ops),
				logger.FieldBatchSize, ceiling,
			)
			continue
		}
		if size+len(u.ops) > ceiling && len(current) > 0 {
			chunks = append(chunks, current)
			current, size = nil, 0
		}
		current = append(current, u)
		size += len(u.ops)
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

func flatten[T Keyed](chunk []unit[T]) []batch.Operation {
	var ops []batch.Operation
	for _, u := range chunk {
		ops = append(ops, u.ops...)
	}
	return ops
}

func (r *run[E, T]) dryRun(chunks [][]unit[T]) error {
	jc := r.jc
	var loaded []T

	for i, chunk := range chunks {
		ops := flatten(chunk)
		for _, op := range ops {
			jc.Logger.Debugw("Dry run operation", "kind", op.Kind, logger.FieldPath, op.Path.String())
		}
		r.report.Chunks = append(r.report.Chunks, ChunkReport{Index: i, Ops: len(ops), Items: len(chunk)})
		r.report.Operations += len(ops)
		for _, u := range chunk {
			loaded = append(loaded, u.item)
		}
	}
	jc.Stats.Load.Succeed(len(loaded))

	indexOps := r.indexOps(loaded)
	for _, op := range indexOps {
		jc.Logger.Debugw("Dry run index operation", "kind", op.Kind, logger.FieldPath, op.Path.String())
	}
	r.report.IndexOps = len(indexOps)

	jc.Logger.Infow("Dry run, nothing written",
		"operations", r.report.Operations+len(indexOps),
		"chunks", len(chunks),
	)
	return nil
}

func (r *run[E, T]) export(chunks [][]unit[T]) error {
	jc := r.jc
	var loaded []T

	for i, chunk := range chunks {
		ops := flatten(chunk)
		written, err := jc.Exporter.WriteOperations(ops)
		r.report.FilesWritten += written
		r.report.Operations += len(ops)
		if err != nil {
			jc.Stats.Load.Fail(len(chunk))
			jc.Stats.RecordError()
			return errors.Wrapf(err, "export chunk %d", i)
		}
		jc.Stats.Load.Succeed(len(chunk))
		for _, u := range chunk {
			loaded = append(loaded, u.item)
		}
		r.progress(StateLoading, len(loaded), r.plannedItems(chunks), "items exported")
	}

	indexOps := r.indexOps(loaded)
	written, err := jc.Exporter.WriteOperations(indexOps)
	r.report.FilesWritten += written
	r.report.IndexOps = len(indexOps)
	if err != nil {
		jc.Stats.RecordError()
		return errors.Wrap(err, "export index documents")
	}

	jc.Logger.Infow("Exported", "files", r.report.FilesWritten, "base", jc.Exporter.Base())
	return nil
}

func (r *run[E, T]) commitAll(ctx context.Context, chunks [][]unit[T]) {
	jc := r.jc
	total := r.plannedItems(chunks)
	var loaded []T
	done := 0

	for i, chunk := range chunks {
		ops := flatten(chunk)
		if r.commit(ctx, i, ops, len(chunk), false) {
			jc.Stats.Load.Succeed(len(chunk))
			for _, u := range chunk {
				loaded = append(loaded, u.item)
			}
		} else {
			jc.Stats.Load.Fail(len(chunk))
		}
		done += len(chunk)
		r.progress(StateLoading, done, total, "items loaded")
	}

	indexOps := r.indexOps(loaded)
	r.report.IndexOps = len(indexOps)
	ceiling := r.ceiling()
	for start := 0; start < len(indexOps); start += ceiling {
		end := start + ceiling
		if end > len(indexOps) {
			end = len(indexOps)
		}
		r.commit(ctx, len(r.report.Chunks), indexOps[start:end], 0, true)
	}
}

// commit writes one chunk. A failure is recorded and does not stop the run.
func (r *run[E, T]) commit(ctx context.Context, index int, ops []batch.Operation, items int, indexOnly bool) bool {
	jc := r.jc
	chunk := ChunkReport{Index: index, Ops: len(ops), Items: items, IndexOnly: indexOnly}
	r.report.Operations += len(ops)

	start := time.Now()
	var err error
	for _, op := range ops {
		if err = jc.Writer.Add(op); err != nil {
			jc.Writer.Discard()
			break
		}
	}
	if err == nil {
		_, err = jc.Writer.Commit(ctx)
	}
	chunk.ElapsedMS = time.Since(start).Milliseconds()

	if err != nil {
		chunk.Error = err.Error()
		r.report.FailedChunks++
		r.report.Chunks = append(r.report.Chunks, chunk)
		jc.Stats.RecordError()
		jc.Logger.Errorw("Chunk failed, continuing with the next one",
			logger.FieldChunk, index,
			logger.FieldBatchSize, len(ops),
			logger.FieldError, err.Error(),
		)
		return false
	}

	chunk.Committed = true
	r.report.Chunks = append(r.report.Chunks, chunk)
	jc.Logger.Infow("Chunk committed",
		logger.FieldChunk, index,
		logger.FieldBatchSize, len(ops),
		logger.FieldDurationMS, chunk.ElapsedMS,
	)
	return true
}

// indexOps asks an Indexer job for its index documents
func (r *run[E, T]) indexOps(loaded []T) []batch.Operation {
	indexer, ok := r.job.(Indexer[T])
	if !ok {
		return nil
	}
	if len(loaded) == 0 {
		r.jc.Logger.Warnw("No items loaded, index documents left unchanged")
		return nil
	}
	if reason := r.partial(); reason != "" {
		r.jc.Logger.Warnw("Partial run, index documents left unchanged", "reason", reason)
		r.report.Warnings = append(r.report.Warnings, "index not updated: "+reason)
		return nil
	}

	ops, err := indexer.Index(r.jc, loaded)
	if err != nil {
		r.jc.Stats.RecordError()
		r.jc.Logger.Errorw("Building index documents failed", logger.FieldError, err.Error())
		r.report.Warnings = append(r.report.Warnings, "index not updated: "+err.Error())
		return nil
	}
	return ops
}

// partial explains why this run does not cover the whole period, or returns
// "" when it does. Index documents list the whole period, so a partial run
// must not replace them.
func (r *run[E, T]) partial() string {
	switch {
	case r.jc.Options.EntityID != "":
		return "single entity run (--id " + r.jc.Options.EntityID + ")"
	case r.limitCut:
		return "item limit left entities out"
	case r.report.FailedChunks > 0:
		return "chunks failed to commit"
	}
	return ""
}

func (r *run[E, T]) plannedItems(chunks [][]unit[T]) int {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	return n
}
