package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bs3vcenk/Netrix-sub000/internal/model"
	"github.com/bs3vcenk/Netrix-sub000/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func day(y int, m time.Month, d int) int64 {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}

func extract(t *testing.T, html []byte, kind Kind) Record {
	t.Helper()
	rec, err := NewHTML(time.UTC).Extract(html, kind)
	require.NoError(t, err)
	require.Equal(t, kind, rec.Kind())
	return rec
}

func TestExtractClasses(t *testing.T) {
	classes := extract(t, fixture(t, "classes.html"), KindClasses).(ClassList)

	require.Len(t, classes, 2)
	assert.Equal(t, model.Class{
		ID:          0,
		ExternalID:  "2020000123",
		Label:       "4.b",
		Year:        "2019./2020.",
		SchoolName:  "Gimnazija Lucijana Vranjanina, Zagreb",
		ClassMaster: "Marija Horvat",
	}, classes[0])
	assert.Equal(t, 1, classes[1].ID)
	assert.Equal(t, "2019000456", classes[1].ExternalID)
	assert.Equal(t, "Ivan Kovač", classes[1].ClassMaster)
}

func TestExtractClassesRejectsMissingSegments(t *testing.T) {
	html := []byte(`<a class="class-wrap" href="/pregled/predmeti/1"><div class="class"><span>1.a</span>Školska godina 2020./2021.</div></a>`)

	_, err := NewHTML(time.UTC).Extract(html, KindClasses)
	require.Error(t, err)
	assert.True(t, errors.IsParse(err))
}

func TestExtractSubjects(t *testing.T) {
	subjects := extract(t, fixture(t, "subjects.html"), KindSubjects).(SubjectList)

	require.Len(t, subjects, 3)
	assert.Equal(t, "Hrvatski jezik", subjects[0].Name)
	assert.Equal(t, []string{"Ana Anić"}, subjects[0].Professors)
	assert.Equal(t, "/pregled/predmet/2020000123/1111", subjects[0].Link)
	assert.Equal(t, []string{"Petra Perić", "Marko Marić"}, subjects[1].Professors)
	assert.Empty(t, subjects[2].Professors)
	assert.Equal(t, 2, subjects[2].ID)
}

func TestExtractGrades(t *testing.T) {
	list := extract(t, fixture(t, "grades.html"), KindGrades).(GradeList)

	assert.Equal(t, []model.Grade{
		{Date: day(2020, time.February, 20), Note: "Usmeno ispitivanje", Value: 5},
		{Date: day(2020, time.February, 1), Note: "Pismena provjera", Value: 4},
		{Date: day(2020, time.January, 15), Note: "Kontrolni", Value: 3},
	}, list.Grades)
	assert.Equal(t, []model.Note{{Date: day(2020, time.January, 10), Note: "Zaboravio zadaću"}}, list.Notes)
}

func TestExtractGradesPlaceholder(t *testing.T) {
	list := extract(t, fixture(t, "grades_empty.html"), KindGrades).(GradeList)

	assert.Empty(t, list.Grades)
	assert.Empty(t, list.Notes)
}

func TestExtractGradesMalformedRow(t *testing.T) {
	tests := map[string]string{
		"incomplete row": `<div class="grades"><table id="grade_notes"><tr><td>1.2.2020.</td><td>Test</td></tr></table></div>`,
		"bad value":      `<div class="grades"><table id="grade_notes"><tr><td>1.2.2020.</td><td>Test</td><td>A</td></tr></table></div>`,
		"out of range":   `<div class="grades"><table id="grade_notes"><tr><td>1.2.2020.</td><td>Test</td><td>7</td></tr></table></div>`,
		"bad date":       `<div class="grades"><table id="grade_notes"><tr><td>veljača</td><td>Test</td><td>4</td></tr></table></div>`,
	}

	for name, html := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewHTML(time.UTC).Extract([]byte(html), KindGrades)
			assert.True(t, errors.IsParse(err), "got %v", err)
		})
	}
}

func TestExtractAverage(t *testing.T) {
	t.Run("mean of grades", func(t *testing.T) {
		avg := extract(t, fixture(t, "grades.html"), KindAverage).(AverageRecord)

		require.NotNil(t, avg.Value)
		assert.False(t, avg.Finalized)
		assert.Equal(t, 4.0, *avg.Value)
	})

	t.Run("finalized grade wins", func(t *testing.T) {
		avg := extract(t, fixture(t, "grades_final.html"), KindAverage).(AverageRecord)

		require.NotNil(t, avg.Value)
		assert.True(t, avg.Finalized)
		assert.Equal(t, 4.0, *avg.Value)
	})

	t.Run("no grades", func(t *testing.T) {
		avg := extract(t, fixture(t, "grades_empty.html"), KindAverage).(AverageRecord)

		assert.Nil(t, avg.Value)
	})
}

func TestMean(t *testing.T) {
	avg, ok := Mean([]model.Grade{{Value: 5}, {Value: 4}, {Value: 3}})
	require.True(t, ok)
	assert.Equal(t, 4.00, avg)

	avg, ok = Mean([]model.Grade{{Value: 5}, {Value: 4}, {Value: 4}})
	require.True(t, ok)
	assert.Equal(t, 4.33, avg)

	_, ok = Mean(nil)
	assert.False(t, ok)
}

func TestExtractExams(t *testing.T) {
	exams := extract(t, fixture(t, "exams.html"), KindExams).(ExamList)

	assert.Equal(t, ExamList{
		{Subject: "Matematika", Title: "Derivacije", Date: day(2021, time.March, 15)},
		{Subject: "Fizika", Title: "Optika", Date: day(2021, time.March, 22)},
	}, exams)
}

func TestExtractExamsAcrossTables(t *testing.T) {
	html := []byte(`
<table><tr><td>Matematika</td><td>Derivacije</td><td>15.3.2021.</td></tr></table>
<h2>Drugo polugodište</h2>
<table><tr><td>Fizika</td><td>Optika</td><td>22.3.2021.</td></tr></table>`)

	exams := extract(t, html, KindExams).(ExamList)

	require.Len(t, exams, 2)
	assert.Equal(t, "Matematika", exams[0].Subject)
	assert.Equal(t, "Fizika", exams[1].Subject)
	assert.Equal(t, day(2021, time.March, 22), exams[1].Date)
}

func TestParseErrorSnippetKeepsRunes(t *testing.T) {
	html := []byte("<table><tr><td>x" + strings.Repeat("č", 300) + "</td></tr></table>")

	_, err := NewHTML(time.UTC).Extract(html, KindExams)

	var parseErr *errors.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.NotEmpty(t, parseErr.Snippet)
	assert.LessOrEqual(t, len(parseErr.Snippet), snippetLimit)
	assert.True(t, utf8.ValidString(parseErr.Snippet))
}

func TestExtractExamsWithoutTable(t *testing.T) {
	exams := extract(t, []byte(`<p>Nema ispita</p>`), KindExams).(ExamList)

	assert.Empty(t, exams)
}

func TestExtractAbsenceOverview(t *testing.T) {
	overview := extract(t, fixture(t, "absences.html"), KindAbsenceOverview).(OverviewRecord)

	assert.Equal(t, model.AbsenceOverview{
		Justified:   12,
		Unjustified: 1,
		Awaiting:    2,
		Sum:         15,
		SumLeftover: 0,
	}, overview.AbsenceOverview)
}

func TestExtractAbsenceOverviewMissingCells(t *testing.T) {
	html := []byte(`<table class="legend"><tr><td>Opravdanih: 1</td><td>Neopravdanih: 0</td></tr></table>`)

	_, err := NewHTML(time.UTC).Extract(html, KindAbsenceOverview)
	assert.True(t, errors.IsParse(err))
}

func TestExtractAbsences(t *testing.T) {
	list := extract(t, fixture(t, "absences.html"), KindAbsences).(AbsenceList)

	require.Len(t, list, 2)

	assert.Equal(t, day(2021, time.March, 15), list[0].Date)
	assert.Equal(t, []model.AbsenceRecord{
		{Period: 1, Subject: "Matematika", Reason: "Bolest", Justified: true},
		{Period: 2, Subject: "Fizika", Reason: "Bolest", Justified: true},
	}, list[0].Absences)

	assert.Equal(t, day(2021, time.March, 17), list[1].Date)
	assert.Equal(t, []model.AbsenceRecord{
		{Period: 5, Subject: "Kemija", Reason: "Neopravdano", Justified: false},
	}, list[1].Absences)
}

func TestExtractAbsencesRowspanOverrun(t *testing.T) {
	html := []byte(`<div class="hours"><table>
<tr><th>Datum</th></tr>
<tr><td class="datum" rowspan="3">Ponedjeljak<br>15.3.2021.</td><td id="sat">1</td><td id="predmet">Matematika</td><td id="razlog">Bolest</td><td id="opravdano"></td></tr>
</table></div>`)

	_, err := NewHTML(time.UTC).Extract(html, KindAbsences)
	assert.True(t, errors.IsParse(err))
}

func TestExtractAbsencesBadPeriodFailsGroup(t *testing.T) {
	html := []byte(`<div class="hours"><table>
<tr><th>Datum</th></tr>
<tr><td class="datum" rowspan="2">Ponedjeljak<br>15.3.2021.</td><td id="sat">1</td><td id="predmet">Matematika</td><td id="razlog">Bolest</td><td id="opravdano"></td></tr>
<tr><td id="sat">x</td><td id="predmet">Fizika</td><td id="razlog">Bolest</td><td id="opravdano"></td></tr>
</table></div>`)

	_, err := NewHTML(time.UTC).Extract(html, KindAbsences)
	assert.True(t, errors.IsParse(err))
}

func TestExtractUnknownKind(t *testing.T) {
	_, err := NewHTML(time.UTC).Extract([]byte("<p></p>"), Kind("timetable"))
	assert.Error(t, err)
}

func TestCSRFToken(t *testing.T) {
	token, ok := CSRFToken(fixture(t, "login.html"))
	require.True(t, ok)
	assert.Equal(t, "f00dfeed", token)

	_, ok = CSRFToken([]byte("<form></form>"))
	assert.False(t, ok)
}
