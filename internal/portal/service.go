package portal

import (
	"context"
	"fmt"

	"github.com/bs3vcenk/Netrix-sub000/internal/extract"
	"github.com/bs3vcenk/Netrix-sub000/internal/logger"
	"github.com/bs3vcenk/Netrix-sub000/internal/model"
	"github.com/bs3vcenk/Netrix-sub000/pkg/errors"

	"github.com/rs/zerolog"
)

// Snapshotter keeps pages that failed to parse.
type Snapshotter interface {
	Snapshot(ctx context.Context, kind extract.Kind, path string, page []byte) error
}

// Service fetches portal pages through a Session and extracts records from
// them.
type Service struct {
	session   *Session
	extractor extract.Extractor
	snapshots Snapshotter
	log       zerolog.Logger
}

// NewService wires a session to an extractor. snapshots may be nil.
func NewService(session *Session, extractor extract.Extractor, snapshots Snapshotter) *Service {
	return &Service{
		session:   session,
		extractor: extractor,
		snapshots: snapshots,
		log:       logger.Component("portal"),
	}
}

func (s *Service) Login(ctx context.Context, username, password string) error {
	return s.session.Login(ctx, username, password)
}

func (s *Service) Classes(ctx context.Context) ([]model.Class, error) {
	rec, err := s.fetch(ctx, ClassesPath, extract.KindClasses, false)
	if err != nil {
		return nil, err
	}
	return rec.(extract.ClassList), nil
}

func (s *Service) Subjects(ctx context.Context, class model.Class) ([]model.Subject, error) {
	rec, err := s.fetch(ctx, SubjectsPath+class.ExternalID, extract.KindSubjects, false)
	if err != nil {
		return nil, err
	}
	return rec.(extract.SubjectList), nil
}

// Grades and Average read the same subject page, which is fetched once per
// session.
func (s *Service) Grades(ctx context.Context, subject model.Subject) (extract.GradeList, error) {
	rec, err := s.fetch(ctx, subject.Link, extract.KindGrades, true)
	if err != nil {
		return extract.GradeList{}, err
	}
	return rec.(extract.GradeList), nil
}

func (s *Service) Average(ctx context.Context, subject model.Subject) (extract.AverageRecord, error) {
	rec, err := s.fetch(ctx, subject.Link, extract.KindAverage, true)
	if err != nil {
		return extract.AverageRecord{}, err
	}
	return rec.(extract.AverageRecord), nil
}

// Exams lists the class exams; all includes those already written.
func (s *Service) Exams(ctx context.Context, class model.Class, all bool) ([]model.Exam, error) {
	path := ExamsPath + class.ExternalID
	if all {
		path += "/all"
	}
	rec, err := s.fetch(ctx, path, extract.KindExams, false)
	if err != nil {
		return nil, err
	}
	return rec.(extract.ExamList), nil
}

func (s *Service) AbsenceOverview(ctx context.Context, class model.Class) (model.AbsenceOverview, error) {
	rec, err := s.fetch(ctx, AbsencesPath+class.ExternalID, extract.KindAbsenceOverview, true)
	if err != nil {
		return model.AbsenceOverview{}, err
	}
	return rec.(extract.OverviewRecord).AbsenceOverview, nil
}

func (s *Service) Absences(ctx context.Context, class model.Class) ([]model.AbsenceDay, error) {
	rec, err := s.fetch(ctx, AbsencesPath+class.ExternalID, extract.KindAbsences, true)
	if err != nil {
		return nil, err
	}
	return rec.(extract.AbsenceList), nil
}

func (s *Service) fetch(ctx context.Context, path string, kind extract.Kind, cached bool) (extract.Record, error) {
	var (
		page []byte
		err  error
	)
	if cached {
		page, err = s.session.Page(ctx, path)
	} else {
		page, err = s.session.Get(ctx, path)
	}
	if err != nil {
		return nil, err
	}

	rec, err := s.extractor.Extract(page, kind)
	if err != nil {
		if errors.IsParse(err) {
			s.onParseError(ctx, kind, path, page, err)
		}
		return nil, fmt.Errorf("failed to extract %s: %w", kind, err)
	}

	if rec.Kind() != kind {
		return nil, fmt.Errorf("extractor returned %s for %s", rec.Kind(), kind)
	}

	return rec, nil
}

func (s *Service) onParseError(ctx context.Context, kind extract.Kind, path string, page []byte, err error) {
	s.log.Error().Err(err).Str("kind", string(kind)).Str("path", path).Msg("Portal page did not match expected markup")

	if s.snapshots == nil {
		return
	}
	if serr := s.snapshots.Snapshot(ctx, kind, path, page); serr != nil {
		s.log.Warn().Err(serr).Str("kind", string(kind)).Msg("Failed to archive page snapshot")
	}
}
