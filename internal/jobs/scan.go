package jobs

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const jobColumns = "id, kind, status, source_path, output_path, style, language, caption_source, segments, frames, output_bytes, warnings_json, error_kind, error_message, created_at, finished_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job           Job
		kind, status  string
		outputPath    sql.NullString
		style         sql.NullString
		language      sql.NullString
		captionSource sql.NullString
		warnings      sql.NullString
		errorKind     sql.NullString
		errorMessage  sql.NullString
		createdRaw    string
		finishedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&job.ID,
		&kind,
		&status,
		&job.SourcePath,
		&outputPath,
		&style,
		&language,
		&captionSource,
		&job.Segments,
		&job.Frames,
		&job.OutputBytes,
		&warnings,
		&errorKind,
		&errorMessage,
		&createdRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	job.Kind = Kind(kind)
	job.Status = Status(status)
	job.OutputPath = outputPath.String
	job.Style = style.String
	job.Language = language.String
	job.CaptionSource = captionSource.String
	job.ErrorKind = errorKind.String
	job.ErrorMessage = errorMessage.String

	if warnings.Valid && warnings.String != "" {
		if err := json.Unmarshal([]byte(warnings.String), &job.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings for job %s: %w", job.ID, err)
		}
	}
	created, err := time.Parse(timeLayout, createdRaw)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for job %s: %w", job.ID, err)
	}
	job.CreatedAt = created
	if finishedRaw.Valid && finishedRaw.String != "" {
		finished, err := time.Parse(timeLayout, finishedRaw.String)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at for job %s: %w", job.ID, err)
		}
		job.FinishedAt = finished
	}
	return &job, nil
}
