// Package importer backfills historical snapshots from the archive
// feed. Imports are checkpointed: progress is persisted every few
// batches so a crashed or paused import resumes from the day after the
// last completed file instead of starting over.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/parkpulse/parkpulse/internal/config"
	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
	"github.com/parkpulse/parkpulse/internal/resolver"
	"github.com/parkpulse/parkpulse/internal/sources/themegrid"
)

// Importer replays archive files into the snapshot tables.
type Importer struct {
	repo     *persistence.Repository
	archive  *themegrid.Client
	resolver *resolver.Resolver
	cfg      config.ImportConfig
}

// New creates an importer.
func New(repo *persistence.Repository, archive *themegrid.Client, res *resolver.Resolver, cfg config.ImportConfig) *Importer {
	return &Importer{repo: repo, archive: archive, resolver: res, cfg: cfg}
}

// Run imports one destination's archive. An existing resumable
// checkpoint continues from the day after its last processed date; a
// completed or cancelled checkpoint is an error.
func (i *Importer) Run(ctx context.Context, destUUID string) error {
	park, err := i.repo.Parks.GetByExternalID(ctx, destUUID)
	if err != nil {
		return fmt.Errorf("failed to look up destination: %w", err)
	}
	if park == nil {
		return fmt.Errorf("unknown destination %s", destUUID)
	}

	cp, err := i.openCheckpoint(ctx, destUUID)
	if err != nil {
		return err
	}

	// A checkpoint left IN_PROGRESS by a crash resumes without a
	// transition; anything else moves through the state machine.
	if cp.Status != model.ImportInProgress {
		if err := i.repo.Imports.UpdateStatus(ctx, cp.ID, model.ImportInProgress); err != nil {
			return fmt.Errorf("failed to start import: %w", err)
		}
	}

	runErr := i.runFiles(ctx, park, cp)
	if runErr != nil {
		if err := i.repo.Imports.UpdateStatus(ctx, cp.ID, model.ImportFailed); err != nil {
			log.Error().Err(err).Int64("import_id", cp.ID).Msg("failed to mark import failed")
		}
		return runErr
	}

	if err := i.repo.Imports.UpdateStatus(ctx, cp.ID, model.ImportCompleted); err != nil {
		return fmt.Errorf("failed to complete import: %w", err)
	}
	log.Info().Int64("import_id", cp.ID).Str("destination", destUUID).Msg("import complete")
	return nil
}

func (i *Importer) openCheckpoint(ctx context.Context, destUUID string) (*persistence.ImportCheckpoint, error) {
	cp, err := i.repo.Imports.GetByDestination(ctx, destUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up checkpoint: %w", err)
	}
	if cp != nil {
		if !cp.Resumable {
			return nil, fmt.Errorf("import for %s is %s and not resumable", destUUID, cp.Status)
		}
		log.Info().
			Int64("import_id", cp.ID).
			Str("destination", destUUID).
			Str("status", string(cp.Status)).
			Msg("resuming import")
		return cp, nil
	}

	id, err := i.repo.Imports.Create(ctx, persistence.ImportCheckpoint{
		DestinationUUID: destUUID,
		Status:          model.ImportPending,
		Resumable:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkpoint: %w", err)
	}
	return i.repo.Imports.GetByID(ctx, id)
}

// runFiles walks the archive listing in date order, skipping files at or
// before the checkpoint's last processed date.
func (i *Importer) runFiles(ctx context.Context, park *persistence.Park, cp *persistence.ImportCheckpoint) error {
	files, err := i.archive.ListArchiveFiles(ctx, cp.DestinationUUID)
	if err != nil {
		return fmt.Errorf("failed to list archive files: %w", err)
	}

	imported := cp.RecordsImported
	errCount := cp.ErrorsEncountered
	batchesSinceCheckpoint := 0

	for _, file := range files {
		if cp.LastProcessedDate != nil && !file.Date.After(*cp.LastProcessedDate) {
			continue
		}

		// Admin pause/cancel lands in the checkpoint row; honor it
		// between files.
		current, err := i.repo.Imports.GetByID(ctx, cp.ID)
		if err != nil {
			return fmt.Errorf("failed to reload checkpoint: %w", err)
		}
		if current.Status != model.ImportInProgress {
			log.Info().
				Int64("import_id", cp.ID).
				Str("status", string(current.Status)).
				Msg("import interrupted by status change")
			return nil
		}

		fileImported, fileErrs, err := i.importFile(ctx, park, cp.ID, file, &batchesSinceCheckpoint, &imported, &errCount)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", file.Name, err)
		}
		imported += fileImported
		errCount += fileErrs

		if err := i.repo.Imports.SaveProgress(ctx, cp.ID, file.Date, file.Name, imported, errCount); err != nil {
			return fmt.Errorf("failed to save progress: %w", err)
		}
		batchesSinceCheckpoint = 0

		log.Debug().
			Str("file", file.Name).
			Int64("imported", imported).
			Int64("errors", errCount).
			Msg("archive file imported")
	}

	return nil
}

// importFile streams one archive day file into batched snapshot inserts.
func (i *Importer) importFile(ctx context.Context, park *persistence.Park, importID int64, file themegrid.ArchiveFile, batchesSinceCheckpoint *int, imported, errCount *int64) (int64, int64, error) {
	batch := make([]persistence.RideStatusSnapshot, 0, i.cfg.BatchSize)
	var fileImported, fileErrs int64

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := i.repo.Snapshots.InsertRideBatch(ctx, batch); err != nil {
			return err
		}
		fileImported += int64(len(batch))
		batch = batch[:0]

		*batchesSinceCheckpoint++
		if *batchesSinceCheckpoint >= i.cfg.CheckpointInterval {
			if err := i.repo.Imports.SaveProgress(ctx, importID, file.Date, file.Name, *imported+fileImported, *errCount+fileErrs); err != nil {
				return fmt.Errorf("failed to checkpoint mid-file: %w", err)
			}
			*batchesSinceCheckpoint = 0
		}
		return nil
	}

	err := i.archive.StreamArchive(ctx, park.ExternalID, file.Name, func(ev themegrid.ArchiveEvent) error {
		snap, err := i.convertEvent(ctx, park, ev)
		if err != nil {
			fileErrs++
			issue := model.IssueParseError
			if errors.Is(err, resolver.ErrUnresolved) {
				issue = model.IssueMappingFailed
			}
			i.logQuality(ctx, importID, issue, ev.EntityID, err.Error())
			return nil
		}
		batch = append(batch, *snap)
		if len(batch) >= i.cfg.BatchSize {
			return flush()
		}
		return nil
	}, func(raw json.RawMessage, decodeErr error) {
		fileErrs++
		desc := fmt.Sprintf("undecodable archive record: %v: %s", decodeErr, truncate(string(raw), 200))
		i.logQuality(ctx, importID, model.IssueParseError, "", desc)
	})
	if err != nil {
		return fileImported, fileErrs, err
	}

	return fileImported, fileErrs, flush()
}

// convertEvent maps an archive event to a snapshot row. Returns nil for
// events that resolve to no ride.
func (i *Importer) convertEvent(ctx context.Context, park *persistence.Park, ev themegrid.ArchiveEvent) (*persistence.RideStatusSnapshot, error) {
	if ev.EntityID == "" || ev.Timestamp.IsZero() {
		return nil, fmt.Errorf("archive event missing entity id or timestamp")
	}

	res, err := i.resolver.Resolve(ctx, park.ID, ev.EntityID, ev.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve archive entity: %w", err)
	}

	snap := &persistence.RideStatusSnapshot{
		RideID:     res.RideID,
		ParkID:     park.ID,
		RecordedAt: ev.Timestamp.UTC(),
		WaitTime:   ev.WaitMinutes,
		DataSource: model.SourceArchive,
	}
	if status, err := model.ParseRideStatus(ev.Status); err == nil {
		snap.Status = &status
		snap.ComputedIsOpen = status == model.StatusOperating
	}
	return snap, nil
}

func (i *Importer) logQuality(ctx context.Context, importID int64, issue model.QualityIssueType, externalID, desc string) {
	id := importID
	err := i.repo.Quality.Insert(ctx, persistence.DataQualityLog{
		ImportID:    &id,
		IssueType:   issue,
		EntityType:  "archive_event",
		ExternalID:  externalID,
		Description: desc,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to write quality log")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Pause requests an in-progress import to stop after the current file.
func (i *Importer) Pause(ctx context.Context, id int64) error {
	return i.repo.Imports.UpdateStatus(ctx, id, model.ImportPaused)
}

// Cancel terminates an import permanently.
func (i *Importer) Cancel(ctx context.Context, id int64) error {
	return i.repo.Imports.UpdateStatus(ctx, id, model.ImportCancelled)
}

// Resume moves a paused or failed import back to in-progress and runs it.
func (i *Importer) Resume(ctx context.Context, destUUID string) error {
	return i.Run(ctx, destUUID)
}
