// Package services contains the application core: the stem export
// orchestrator and the meter registry.
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/calliope-audio/stemforge/internal/core/domain"
	"github.com/calliope-audio/stemforge/internal/core/ports"
	"github.com/calliope-audio/stemforge/internal/render"
)

// ErrQueueFull is returned by StartExport when the background queue
// cannot accept another job. No job record is left behind.
var ErrQueueFull = errors.New("service: export queue full")

// errCancelled carries the user-visible message for a cancelled job.
var errCancelled = errors.New("cancelled by user")

// Queue hands jobs to the background workers. Cancel stops a running
// job cooperatively and reports whether it was known to the queue.
type Queue interface {
	Submit(jobID string) error
	Cancel(jobID string) bool
}

// DownloadInfo describes the completed bundle for a download response.
type DownloadInfo struct {
	DownloadURL string `json:"downloadUrl"`
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
}

// Orchestrator coordinates validation, background rendering, archiving,
// and the export job state machine.
type Orchestrator struct {
	repo     ports.ExportRepository
	projects ports.ProjectRepository
	codec    ports.Codec
	storage  ports.Storage
	archiver ports.Archiver
	stems    *render.StemRenderer
	master   *render.MasterRenderer
	queue    Queue
	workDir  string
}

// NewOrchestrator constructs an Orchestrator. workDir is the parent for
// per-job temporary directories. The queue is attached separately
// because the worker pool needs the orchestrator as its runner.
func NewOrchestrator(repo ports.ExportRepository, projects ports.ProjectRepository, codec ports.Codec, storage ports.Storage, archiver ports.Archiver, workDir string) *Orchestrator {
	stems := render.NewStemRenderer(codec, storage)
	return &Orchestrator{
		repo:     repo,
		projects: projects,
		codec:    codec,
		storage:  storage,
		archiver: archiver,
		stems:    stems,
		master:   render.NewMasterRenderer(stems),
		workDir:  workDir,
	}
}

// AttachQueue wires the background queue after construction.
func (o *Orchestrator) AttachQueue(q Queue) {
	o.queue = q
}

// StartExport validates the request, creates the pending job record,
// and queues background rendering. Validation failures surface before
// any persistent state exists.
func (o *Orchestrator) StartExport(ctx context.Context, req domain.ExportRequest) (domain.ExportJob, error) {
	if err := o.validate(ctx, &req); err != nil {
		return domain.ExportJob{}, err
	}

	job := domain.ExportJob{
		ID:              uuid.NewString(),
		ProjectID:       req.ProjectID,
		UserID:          req.UserID,
		Request:         req,
		Status:          domain.JobPending,
		IndividualFiles: []domain.FileDescriptor{},
		CreatedAt:       time.Now().UTC(),
	}
	if err := o.repo.Create(ctx, job); err != nil {
		return domain.ExportJob{}, fmt.Errorf("service: failed to create export job: %w", err)
	}

	if err := o.queue.Submit(job.ID); err != nil {
		// Roll back: a job nobody will run must not linger as pending.
		if delErr := o.repo.Delete(ctx, job.ID); delErr != nil {
			log.Printf("WARN service: failed to roll back job %s: %v", job.ID, delErr)
		}
		return domain.ExportJob{}, ErrQueueFull
	}
	return job, nil
}

// validate checks the request against the closed format/rate/depth sets
// and fills conventional defaults. The codec capability check happens
// here so an unavailable encoder is rejected before a job exists.
func (o *Orchestrator) validate(ctx context.Context, req *domain.ExportRequest) error {
	format, err := domain.ParseFormat(string(req.Format))
	if err != nil {
		return ports.ValidationError{Field: "format", Reason: fmt.Sprintf("unsupported format %q", req.Format)}
	}
	if !o.codec.Available(format) {
		return ports.ValidationError{Field: "format", Reason: fmt.Sprintf("no %s encoder available", format)}
	}
	if !domain.ValidSampleRate(req.SampleRate) {
		return ports.ValidationError{Field: "sampleRate", Reason: fmt.Sprintf("unsupported sample rate %d", req.SampleRate)}
	}

	if format.Lossless() {
		if req.BitDepth == 0 {
			req.BitDepth = 16
		}
		if !domain.ValidBitDepth(req.BitDepth) {
			return ports.ValidationError{Field: "bitDepth", Reason: fmt.Sprintf("unsupported bit depth %d", req.BitDepth)}
		}
		if req.BitrateKbps != 0 {
			return ports.ValidationError{Field: "bitrate", Reason: "bitrate applies to lossy formats only"}
		}
	} else {
		if req.BitDepth != 0 {
			return ports.ValidationError{Field: "bitDepth", Reason: "bit depth applies to lossless formats only"}
		}
		if req.BitrateKbps < 0 {
			return ports.ValidationError{Field: "bitrate", Reason: "bitrate must be positive"}
		}
	}

	if req.Normalize {
		nt, err := domain.ParseNormalizationType(string(req.NormalizationType))
		if err != nil {
			return ports.ValidationError{Field: "normalizationType", Reason: fmt.Sprintf("unsupported normalization type %q", req.NormalizationType)}
		}
		if nt == domain.NormalizeNone {
			nt = domain.NormalizePeak
		}
		req.NormalizationType = nt
		if req.TargetLevel == 0 {
			req.TargetLevel = render.DefaultTargetLevel(nt)
		}
	}

	tracks, err := o.projects.ResolveTracks(ctx, req.ProjectID, req.TrackIDs)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		return ports.ValidationError{Field: "projectId", Reason: "no tracks resolved for export"}
	}
	return nil
}

// Run executes one export job to a terminal state. Called by the worker
// pool; ctx is the job's cancellable context.
func (o *Orchestrator) Run(ctx context.Context, jobID string) {
	job, err := o.repo.Get(context.Background(), jobID)
	if err != nil {
		log.Printf("WARN service: job %s vanished before processing: %v", jobID, err)
		return
	}
	if job.Status != domain.JobPending {
		// Cancelled (or otherwise finalized) while queued.
		log.Printf("service: skipping job %s in state %s", jobID, job.Status)
		return
	}

	now := time.Now().UTC()
	job.StartedAt = &now
	if err := job.Transition(domain.JobProcessing); err != nil {
		log.Printf("WARN service: job %s: %v", jobID, err)
		return
	}
	o.persist(&job)

	tmpDir := filepath.Join(o.workDir, job.ID)
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		o.fail(&job, fmt.Errorf("service: job workspace: %w", err))
		return
	}
	defer os.RemoveAll(tmpDir) // guaranteed cleanup on every exit path

	if err := o.renderJob(ctx, &job, tmpDir); err != nil {
		o.fail(&job, err)
		return
	}
	o.complete(&job)
}

// renderJob runs steps 4-6 of the pipeline: stems, master bus, bundle.
// Per-track failures are logged and contained; only zero successes,
// cancellation, or a bundle-stage error fail the job.
func (o *Orchestrator) renderJob(ctx context.Context, job *domain.ExportJob, tmpDir string) error {
	if ctx.Err() != nil {
		return errCancelled
	}
	tracks, err := o.projects.ResolveTracks(ctx, job.ProjectID, job.Request.TrackIDs)
	if err != nil {
		return fmt.Errorf("service: failed to resolve tracks: %w", err)
	}
	if len(tracks) == 0 {
		return fmt.Errorf("service: no tracks resolved for export")
	}

	// Track volume is baked into each stem, so the master mixes the
	// rendered buffers at unity rather than applying volume twice.
	masterInputs := make([]render.MasterInput, 0, len(tracks))
	for i, track := range tracks {
		if ctx.Err() != nil {
			return errCancelled
		}
		job.CurrentTrackLabel = track.Name
		o.persist(job)

		desc, buf, err := o.stems.RenderTrack(ctx, track, job.Request)
		if err != nil {
			log.Printf("WARN service: track %s (%q) failed, continuing: %v", track.ID, track.Name, err)
		} else {
			job.IndividualFiles = append(job.IndividualFiles, desc)
			job.TotalDuration += desc.Duration
			job.TotalFileSize += desc.Size
			if !track.Mute {
				masterInputs = append(masterInputs, render.MasterInput{Buffer: buf, Volume: 1})
			}
		}

		job.AdvanceProgress((i + 1) * 90 / len(tracks))
		o.persist(job)
	}
	if len(job.IndividualFiles) == 0 {
		return fmt.Errorf("service: no tracks rendered successfully")
	}
	if ctx.Err() != nil {
		return errCancelled
	}

	if job.Request.IncludeMasterBus {
		job.CurrentTrackLabel = "Master"
		o.persist(job)
		desc, ok, err := o.master.RenderMaster(ctx, masterInputs, job.Request)
		switch {
		case err != nil:
			// Contained like a per-track failure: the stems are the
			// deliverable, the master is additive.
			log.Printf("WARN service: master bus failed, continuing: %v", err)
		case ok:
			job.IndividualFiles = append(job.IndividualFiles, desc)
			job.TotalDuration += desc.Duration
			job.TotalFileSize += desc.Size
		}
	}
	job.AdvanceProgress(95)
	o.persist(job)

	if ctx.Err() != nil {
		return errCancelled
	}
	return o.bundle(ctx, job, tmpDir)
}

// bundle stages every rendered file into the job workspace, zips them,
// and uploads the archive. A failure here fails the whole job.
func (o *Orchestrator) bundle(ctx context.Context, job *domain.ExportJob, tmpDir string) error {
	entries := make([]ports.ArchiveEntry, 0, len(job.IndividualFiles))
	for _, f := range job.IndividualFiles {
		data, err := o.storage.Download(ctx, f.StorageKey)
		if err != nil {
			return fmt.Errorf("service: failed to stage %s for bundle: %w", f.FileName, err)
		}
		path := filepath.Join(tmpDir, f.FileName)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("service: failed to stage %s for bundle: %w", f.FileName, err)
		}
		entries = append(entries, ports.ArchiveEntry{Path: path, DisplayName: f.FileName})
	}

	var zipBuf bytes.Buffer
	if err := o.archiver.Bundle(ctx, entries, &zipBuf); err != nil {
		return fmt.Errorf("service: failed to bundle archive: %w", err)
	}

	name := fmt.Sprintf("%s-stems.zip", job.ProjectID)
	key, err := o.storage.Upload(ctx, zipBuf.Bytes(), "archives", name, "application/zip")
	if err != nil {
		return fmt.Errorf("service: failed to upload bundle: %w", err)
	}
	job.ZipLocation = key
	job.ZipSize = int64(zipBuf.Len())
	return nil
}

// GetStatus returns the current job snapshot. Reads have no side effects.
func (o *Orchestrator) GetStatus(ctx context.Context, id string) (domain.ExportJob, error) {
	return o.repo.Get(ctx, id)
}

// GetDownload returns the bundle download location. Only valid once the
// job has completed.
func (o *Orchestrator) GetDownload(ctx context.Context, id string) (DownloadInfo, error) {
	job, err := o.repo.Get(ctx, id)
	if err != nil {
		return DownloadInfo{}, err
	}
	if job.Status != domain.JobCompleted || job.ZipLocation == "" {
		return DownloadInfo{}, domain.JobStateError{JobID: id, Status: job.Status, Op: "downloaded"}
	}
	url, err := o.storage.DownloadURL(ctx, job.ZipLocation)
	if err != nil {
		return DownloadInfo{}, fmt.Errorf("service: failed to resolve download url: %w", err)
	}
	return DownloadInfo{
		DownloadURL: url,
		FileName:    fmt.Sprintf("%s-stems.zip", job.ProjectID),
		FileSize:    job.ZipSize,
	}, nil
}

// Cancel stops a pending or processing job. Terminal jobs reject with a
// JobStateError and no state is mutated. Cancellation of a running job
// is cooperative: workers observe it between tracks.
func (o *Orchestrator) Cancel(ctx context.Context, id string) (domain.ExportJob, error) {
	job, err := o.repo.Get(ctx, id)
	if err != nil {
		return domain.ExportJob{}, err
	}
	if job.Status.Terminal() {
		return domain.ExportJob{}, domain.JobStateError{JobID: id, Status: job.Status, Op: "cancelled"}
	}

	if o.queue != nil {
		o.queue.Cancel(id)
	}
	if job.Status == domain.JobPending {
		// Still queued: finalize here so the worker skips it on dequeue.
		if err := job.Transition(domain.JobFailed); err != nil {
			return domain.ExportJob{}, err
		}
		job.ErrorMessage = errCancelled.Error()
		job.Progress = 0
		job.CurrentTrackLabel = ""
		now := time.Now().UTC()
		job.CompletedAt = &now
		if err := o.repo.Update(ctx, job); err != nil {
			return domain.ExportJob{}, fmt.Errorf("service: failed to persist cancellation: %w", err)
		}
	}
	return job, nil
}

// Delete removes the bundle and every per-track file, then the record.
// Only terminal jobs can be deleted.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	job, err := o.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !job.Status.Terminal() {
		return domain.JobStateError{JobID: id, Status: job.Status, Op: "deleted"}
	}

	for _, f := range job.IndividualFiles {
		if err := o.storage.Delete(ctx, f.StorageKey); err != nil {
			log.Printf("WARN service: failed to delete %s: %v", f.StorageKey, err)
		}
	}
	if job.ZipLocation != "" {
		if err := o.storage.Delete(ctx, job.ZipLocation); err != nil {
			log.Printf("WARN service: failed to delete bundle %s: %v", job.ZipLocation, err)
		}
	}
	return o.repo.Delete(ctx, id)
}

// List returns a page of the project's jobs, newest first, with the
// total count.
func (o *Orchestrator) List(ctx context.Context, projectID string, limit, offset int) ([]domain.ExportJob, int, error) {
	return o.repo.List(ctx, projectID, limit, offset)
}

// complete finalizes a successful job. The persisted record is checked
// first: a cancellation can land between dequeue and completion, and a
// job finalized elsewhere must not be resurrected.
func (o *Orchestrator) complete(job *domain.ExportJob) {
	if current, err := o.repo.Get(context.Background(), job.ID); err == nil && current.Status.Terminal() {
		log.Printf("service: job %s already %s, not completing", job.ID, current.Status)
		return
	}
	if err := job.Transition(domain.JobCompleted); err != nil {
		log.Printf("WARN service: job %s: %v", job.ID, err)
		return
	}
	job.AdvanceProgress(100)
	job.CurrentTrackLabel = ""
	now := time.Now().UTC()
	job.CompletedAt = &now
	o.persist(job)
	log.Printf("service: job %s completed with %d files", job.ID, len(job.IndividualFiles))
}

// fail finalizes a failed job with the captured message and progress
// reset to zero.
func (o *Orchestrator) fail(job *domain.ExportJob, cause error) {
	if err := job.Transition(domain.JobFailed); err != nil {
		log.Printf("WARN service: job %s: %v", job.ID, err)
		return
	}
	job.ErrorMessage = cause.Error()
	job.Progress = 0
	job.CurrentTrackLabel = ""
	now := time.Now().UTC()
	job.CompletedAt = &now
	o.persist(job)
	log.Printf("WARN service: job %s failed: %v", job.ID, cause)
}

// persist writes the job snapshot with a detached context so a
// cancelled job context never blocks the final state from landing.
func (o *Orchestrator) persist(job *domain.ExportJob) {
	if err := o.repo.Update(context.Background(), *job); err != nil {
		log.Printf("WARN service: failed to persist job %s: %v", job.ID, err)
	}
}
