package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kopakredit/custimport/model"
	"github.com/kopakredit/custimport/pkg/csvfile"
	"github.com/kopakredit/custimport/pkg/logger"
	"github.com/kopakredit/custimport/pkg/notify"
)

// Sentinel errors the handlers map onto HTTP statuses.
var (
	ErrSessionNotFound   = errors.New("import session not found")
	ErrInvalidTransition = errors.New("operation not allowed in current stage")
	ErrUnknownField      = errors.New("unknown field")
	ErrUnknownColumn     = errors.New("column not found in file headers")
	ErrParseFailed       = errors.New("failed to parse CSV file")
	ErrSubmitFailed      = errors.New("submission failed")
)

// previewLimit caps the number of mapped rows shown at review.
const previewLimit = 10

// Pipeline drives import sessions through the upload, map, review and
// complete stages. It is the only place that changes a session's
// stage; handlers call in with the operator identity from the request
// and never mutate sessions themselves.
type Pipeline struct {
	store    *SessionStore
	storage  ObjectStore
	importer CustomerImporter
	notifier notify.Notifier
}

func NewPipeline(store *SessionStore, storage ObjectStore, importer CustomerImporter, notifier notify.Notifier) *Pipeline {
	return &Pipeline{
		store:    store,
		storage:  storage,
		importer: importer,
		notifier: notifier,
	}
}

// Begin creates a session for the uploaded file and moves it from
// upload to map. Nothing is persisted when the file does not parse;
// the operator fixes the file and uploads again.
func (p *Pipeline) Begin(ctx context.Context, operator, filename string, data []byte) (*model.ImportSession, []csvfile.Warning, error) {
	sess := &model.ImportSession{
		ID:        uuid.New().String(),
		Operator:  operator,
		Stage:     model.StageUpload,
		Mapping:   map[string]string{},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	warnings, err := p.intake(ctx, sess, filename, data)
	if err != nil {
		return nil, nil, err
	}
	return sess, warnings, nil
}

// AttachFile runs intake on an existing session that was reset back
// to the upload stage.
func (p *Pipeline) AttachFile(ctx context.Context, id, operator, filename string, data []byte) (*model.ImportSession, []csvfile.Warning, error) {
	sess := p.ownedSession(id, operator)
	if sess == nil {
		return nil, nil, ErrSessionNotFound
	}
	if sess.Stage != model.StageUpload {
		return nil, nil, fmt.Errorf("%w: session is in %s stage", ErrInvalidTransition, sess.Stage)
	}

	warnings, err := p.intake(ctx, sess, filename, data)
	if err != nil {
		return nil, nil, err
	}
	return sess, warnings, nil
}

// intake parses the file, retains the original bytes in object
// storage, and advances the session to the map stage. The session is
// only saved when every step succeeds, so a failed intake leaves the
// pipeline in upload.
func (p *Pipeline) intake(ctx context.Context, sess *model.ImportSession, filename string, data []byte) ([]csvfile.Warning, error) {
	table, err := csvfile.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	objectName := fmt.Sprintf("%s/%s/%s", sess.Operator, sess.ID, filename)
	if err := p.storage.Save(ctx, objectName, bytes.NewReader(data), int64(len(data)), "text/csv"); err != nil {
		return nil, fmt.Errorf("failed to store original file: %w", err)
	}

	if err := p.advance(sess, model.StageMap); err != nil {
		return nil, err
	}
	sess.Filename = filename
	sess.ObjectName = objectName
	sess.Headers = table.Headers
	sess.Rows = table.Rows
	sess.Mapping = map[string]string{}
	sess.Errors = nil
	sess.Result = nil
	p.store.Save(sess)

	logger.Info(ctx, "import file received",
		"session_id", sess.ID,
		"filename", filename,
		"rows", len(table.Rows),
		"warnings", len(table.Warnings),
	)
	return table.Warnings, nil
}

// SetMapping replaces the session's column mapping. Only legal during
// the map stage. Field keys must exist in the catalog and mapped
// columns must exist in the file's header set; empty values unmap.
func (p *Pipeline) SetMapping(ctx context.Context, id, operator string, mapping map[string]string) (*model.ImportSession, error) {
	sess := p.ownedSession(id, operator)
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if sess.Stage != model.StageMap {
		return nil, fmt.Errorf("%w: mapping can only change in map stage, session is in %s", ErrInvalidTransition, sess.Stage)
	}

	headerSet := make(map[string]bool, len(sess.Headers))
	for _, h := range sess.Headers {
		headerSet[h] = true
	}

	clean := make(map[string]string, len(mapping))
	for key, col := range mapping {
		if _, ok := model.FieldByKey(key); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, key)
		}
		if col == "" {
			continue
		}
		if !headerSet[col] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, col)
		}
		clean[key] = col
	}

	sess.Mapping = clean
	sess.Errors = nil // stale after any mapping change
	p.store.Save(sess)
	return sess, nil
}

// Validate runs the rule engine over the session's rows. A clean run
// advances map to review; otherwise the errors are recorded and the
// session stays in map. Running it again on the same state produces
// the same outcome.
func (p *Pipeline) Validate(ctx context.Context, id, operator string) (*model.ImportSession, []model.RowError, error) {
	sess := p.ownedSession(id, operator)
	if sess == nil {
		return nil, nil, ErrSessionNotFound
	}
	if sess.Stage != model.StageMap {
		return nil, nil, fmt.Errorf("%w: validation runs in map stage, session is in %s", ErrInvalidTransition, sess.Stage)
	}

	errs := ValidateRows(sess.Rows, sess.Mapping)
	if len(errs) == 0 {
		if err := p.advance(sess, model.StageReview); err != nil {
			return nil, nil, err
		}
		sess.Errors = nil
	} else {
		sess.Errors = errs
	}
	p.store.Save(sess)

	logger.Info(ctx, "validation run",
		"session_id", sess.ID,
		"rows", len(sess.Rows),
		"errors", len(errs),
	)
	return sess, errs, nil
}

// Preview returns up to previewLimit rows as they would be imported,
// keyed by field instead of column. Review stage only.
func (p *Pipeline) Preview(id, operator string) (*model.ImportSession, []map[string]string, error) {
	sess := p.ownedSession(id, operator)
	if sess == nil {
		return nil, nil, ErrSessionNotFound
	}
	if sess.Stage != model.StageReview {
		return nil, nil, fmt.Errorf("%w: preview is available in review stage, session is in %s", ErrInvalidTransition, sess.Stage)
	}

	limit := previewLimit
	if len(sess.Rows) < limit {
		limit = len(sess.Rows)
	}
	preview := make([]map[string]string, 0, limit)
	for _, row := range sess.Rows[:limit] {
		mapped := make(map[string]string, len(sess.Mapping))
		for field, col := range sess.Mapping {
			mapped[field] = row[col]
		}
		preview = append(preview, mapped)
	}
	return sess, preview, nil
}

// Back returns a session from review to map so the operator can
// adjust the mapping.
func (p *Pipeline) Back(ctx context.Context, id, operator string) (*model.ImportSession, error) {
	sess := p.ownedSession(id, operator)
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if sess.Stage != model.StageReview {
		return nil, fmt.Errorf("%w: back is available in review stage, session is in %s", ErrInvalidTransition, sess.Stage)
	}
	if err := p.advance(sess, model.StageMap); err != nil {
		return nil, err
	}
	p.store.Save(sess)
	return sess, nil
}

// Submit forwards the original file to the core banking API and
// completes the session. A failed submission leaves the session in
// review so the operator can retry; a second submit while one is in
// flight is rejected.
func (p *Pipeline) Submit(ctx context.Context, id, operator string) (*model.ImportSession, error) {
	sess := p.ownedSession(id, operator)
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if sess.Stage != model.StageReview {
		return nil, fmt.Errorf("%w: submit is available in review stage, session is in %s", ErrInvalidTransition, sess.Stage)
	}

	if err := p.store.BeginSubmit(sess.ID); err != nil {
		return nil, err
	}
	defer p.store.EndSubmit(sess.ID)

	file, err := p.storage.Fetch(ctx, sess.ObjectName)
	if err != nil {
		p.notifier.Error(ctx, "Import failed. Please try again.")
		return nil, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	defer file.Close()

	res, err := p.importer.BulkImport(ctx, sess.Filename, file)
	if err != nil {
		logger.Error(ctx, "bulk import request failed",
			"session_id", sess.ID,
			"error", err,
		)
		p.notifier.Error(ctx, "Import failed. Please try again.")
		return nil, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}

	result := &model.ImportResult{
		Imported: res.ImportedCount,
		Failed:   res.ErrorCount,
	}
	for i, msg := range res.Errors {
		// The core API reports errors positionally, without row
		// identifiers. Displayed row numbers follow file order and
		// are marked as server-sourced so the UI can flag them as
		// approximate.
		result.Errors = append(result.Errors, model.RowError{
			Row:     i + 2,
			Message: msg,
			Source:  model.ErrorSourceServer,
		})
	}

	submitted := len(sess.Rows)
	if result.Imported+result.Failed != submitted {
		result.Anomaly = fmt.Sprintf("core API counts do not reconcile: %d imported + %d failed, %d rows submitted",
			result.Imported, result.Failed, submitted)
		logger.Warn(ctx, "import count mismatch",
			"session_id", sess.ID,
			"imported", result.Imported,
			"failed", result.Failed,
			"submitted", submitted,
		)
		p.notifier.Error(ctx, result.Anomaly)
	}

	if err := p.advance(sess, model.StageComplete); err != nil {
		return nil, err
	}
	sess.Result = result
	sess.Errors = nil
	p.store.Save(sess)

	logger.Info(ctx, "import submitted",
		"session_id", sess.ID,
		"imported", result.Imported,
		"failed", result.Failed,
	)
	p.notifier.Success(ctx, fmt.Sprintf("Successfully imported %d customers", result.Imported))
	return sess, nil
}

// Reset discards everything the session holds and returns it to the
// upload stage, indistinguishable from a fresh session. Resetting a
// session already in upload is a no-op. The retained original file is
// removed from storage on a best-effort basis.
func (p *Pipeline) Reset(ctx context.Context, id, operator string) (*model.ImportSession, error) {
	sess := p.ownedSession(id, operator)
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if sess.Stage == model.StageUpload {
		return sess, nil
	}
	if err := p.advance(sess, model.StageUpload); err != nil {
		return nil, err
	}

	p.removeObject(ctx, sess.ObjectName)
	sess.Filename = ""
	sess.ObjectName = ""
	sess.Headers = nil
	sess.Rows = nil
	sess.Mapping = map[string]string{}
	sess.Errors = nil
	sess.Result = nil
	p.store.Save(sess)

	logger.Info(ctx, "import session reset", "session_id", sess.ID)
	return sess, nil
}

// Get returns a session if it belongs to the operator.
func (p *Pipeline) Get(id, operator string) (*model.ImportSession, error) {
	sess := p.ownedSession(id, operator)
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// List returns the operator's sessions, newest first.
func (p *Pipeline) List(operator string) []*model.ImportSession {
	sessions := p.store.GetByOperator(operator)
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions
}

// Delete removes a session and its retained file.
func (p *Pipeline) Delete(ctx context.Context, id, operator string) error {
	sess := p.ownedSession(id, operator)
	if sess == nil {
		return ErrSessionNotFound
	}
	p.removeObject(ctx, sess.ObjectName)
	p.store.Delete(sess.ID)
	return nil
}

// FileURL returns a presigned download link for the session's
// original file, or "" when no file is attached.
func (p *Pipeline) FileURL(ctx context.Context, sess *model.ImportSession) string {
	if sess.ObjectName == "" {
		return ""
	}
	url, err := p.storage.FileURL(ctx, sess.ObjectName)
	if err != nil {
		logger.Warn(ctx, "failed to generate file URL",
			"session_id", sess.ID,
			"error", err,
		)
		return ""
	}
	return url
}

// advance moves a session along the stage machine, rejecting any
// transition the table does not allow.
func (p *Pipeline) advance(sess *model.ImportSession, to model.Stage) error {
	if !sess.Stage.CanTransition(to) {
		return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidTransition, sess.Stage, to)
	}
	sess.Stage = to
	return nil
}

// ownedSession fetches a session and hides it from other operators.
func (p *Pipeline) ownedSession(id, operator string) *model.ImportSession {
	sess := p.store.Get(id)
	if sess == nil || sess.Operator != operator {
		return nil
	}
	return sess
}

// removeObject drops a stored file, logging instead of failing when
// storage is unavailable.
func (p *Pipeline) removeObject(ctx context.Context, objectName string) {
	if objectName == "" {
		return
	}
	if err := p.storage.Remove(ctx, objectName); err != nil {
		logger.Warn(ctx, "failed to remove stored file",
			"object", objectName,
			"error", err,
		)
	}
}
