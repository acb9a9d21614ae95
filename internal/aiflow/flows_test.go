package aiflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/examprep/internal/cache"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

type fakeOracle struct {
	mu      sync.Mutex
	replies []string
	err     error
	prompts []Prompt
}

func (f *fakeOracle) Model() string { return "fake-model" }

func (f *fakeOracle) Generate(ctx context.Context, p Prompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", errors.New("no reply queued")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

func (f *fakeOracle) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func TestSummarize(t *testing.T) {
	oracle := &fakeOracle{replies: []string{"```json\n{\"summary\":\"Hücre bölünmesi\",\"key_points\":[\"Mitoz\",\"Mayoz\"]}\n```"}}
	inv := NewInvoker(oracle, nil, 0, nil)

	out, err := inv.Summarize(context.Background(), models.SummarizeRequest{PDFText: "Hücre...", Level: models.ExamLevelYKS})
	require.NoError(t, err)
	assert.Equal(t, "Hücre bölünmesi", out.Summary)
	assert.Equal(t, []string{"Mitoz", "Mayoz"}, out.KeyPoints)

	require.Len(t, oracle.prompts, 1)
	assert.Contains(t, oracle.prompts[0].User, "Hücre...")
	assert.Contains(t, oracle.prompts[0].User, "YKS")
	assert.Equal(t, systemPrompt, oracle.prompts[0].System)
}

func TestSolvePassesImage(t *testing.T) {
	oracle := &fakeOracle{replies: []string{`Cevap şu: {"answer":"B","steps":["x=2"],"explanation":"Yerine koy"} umarım yardımcı olur`}}
	inv := NewInvoker(oracle, nil, 0, nil)

	out, err := inv.Solve(context.Background(), models.SolveRequest{ImageDataURI: "data:image/png;base64,AAAA", Subject: "Matematik"})
	require.NoError(t, err)
	assert.Equal(t, "B", out.Answer)
	assert.Equal(t, "data:image/png;base64,AAAA", oracle.prompts[0].ImageDataURI)
	assert.Contains(t, oracle.prompts[0].User, "Matematik")
	assert.NotContains(t, oracle.prompts[0].User, "SORU:")
}

func TestExplainUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := cache.NewCache(mr.Host(), mr.Server().Addr().Port, "", 0)
	require.NoError(t, err)
	defer c.Close()

	oracle := &fakeOracle{replies: []string{`{"explanation":"Limit yaklaşılan değerdir","examples":["lim x→0 x = 0"],"tips":["Grafik çiz"]}`}}
	inv := NewInvoker(oracle, c, time.Hour, nil)
	req := models.ExplainRequest{Topic: "Limit", Level: models.ExamLevelYKS}

	first, cached, err := inv.Explain(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, cached)

	second, cached, err := inv.Explain(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, first.Explanation, second.Explanation)
	assert.Equal(t, 1, oracle.calls())

	// A different level is a different entry
	oracle.replies = []string{`{"explanation":"LGS anlatımı","examples":[],"tips":[]}`}
	_, cached, err = inv.Explain(context.Background(), models.ExplainRequest{Topic: "Limit", Level: models.ExamLevelLGS})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, oracle.calls())
}

func TestFlashcardsTrimsToCount(t *testing.T) {
	oracle := &fakeOracle{replies: []string{`{"cards":[{"front":"a","back":"1"},{"front":"b","back":"2"},{"front":"c","back":"3"}]}`}}
	inv := NewInvoker(oracle, nil, 0, nil)

	out, err := inv.Flashcards(context.Background(), models.FlashcardsRequest{Topic: "Osmanlı", Count: 2})
	require.NoError(t, err)
	assert.Len(t, out.Cards, 2)
	assert.True(t, strings.HasPrefix(oracle.prompts[0].User, "2 adet"))
}

func TestGenerateTestValidatesShape(t *testing.T) {
	valid := `{"title":"Üslü Sayılar","questions":[{"question":"2^3?","options":["6","8","9","4","2"],"correct_answer":" b ","explanation":"2·2·2"}]}`
	fourOptions := `{"title":"Üslü Sayılar","questions":[{"question":"2^3?","options":["6","8","9","4"],"correct_answer":"B"}]}`
	badLetter := `{"title":"Üslü Sayılar","questions":[{"question":"2^3?","options":["6","8","9","4","2"],"correct_answer":"F"}]}`

	req := models.TestRequest{Subject: "Matematik", Topic: "Üslü Sayılar", QuestionCount: 1, Difficulty: "hard"}

	inv := NewInvoker(&fakeOracle{replies: []string{valid}}, nil, 0, nil)
	out, err := inv.GenerateTest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "B", out.Questions[0].CorrectAnswer)

	for _, reply := range []string{fourOptions, badLetter} {
		inv := NewInvoker(&fakeOracle{replies: []string{reply}}, nil, 0, nil)
		_, err := inv.GenerateTest(context.Background(), req)
		assert.ErrorIs(t, err, ErrFlow)
	}
}

func TestFlowErrors(t *testing.T) {
	inv := NewInvoker(&fakeOracle{replies: []string{"Üzgünüm, yardımcı olamam."}}, nil, 0, nil)
	_, err := inv.Summarize(context.Background(), models.SummarizeRequest{PDFText: "x"})
	assert.ErrorIs(t, err, ErrFlow)

	inv = NewInvoker(&fakeOracle{replies: []string{`{"summary":"","key_points":[]}`}}, nil, 0, nil)
	_, err = inv.Summarize(context.Background(), models.SummarizeRequest{PDFText: "x"})
	assert.ErrorIs(t, err, ErrFlow)

	oracleErr := errors.Join(ErrFlow, errors.New("upstream 503"))
	inv = NewInvoker(&fakeOracle{err: oracleErr}, nil, 0, nil)
	_, err = inv.Solve(context.Background(), models.SolveRequest{Question: "1+1"})
	assert.ErrorIs(t, err, ErrFlow)
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		A int `json:"a"`
	}
	require.NoError(t, decodeJSON("```\n{\"a\":1}\n```", &v))
	assert.Equal(t, 1, v.A)
	require.NoError(t, decodeJSON("here: {\"a\":2} done", &v))
	assert.Equal(t, 2, v.A)
	assert.Error(t, decodeJSON("nothing", &v))
}

func TestRenderAllPrompts(t *testing.T) {
	for tool, data := range map[string]interface{}{
		models.ToolSummarize:  models.SummarizeRequest{PDFText: "t"},
		models.ToolSolve:      models.SolveRequest{Question: "q"},
		models.ToolExplain:    models.ExplainRequest{Topic: "t", Level: models.ExamLevelLGS},
		models.ToolFlashcards: models.FlashcardsRequest{Text: "t", Count: 3},
		models.ToolTest:       models.TestRequest{Subject: "s", Topic: "t", QuestionCount: 5, Difficulty: "easy"},
	} {
		p, err := render(tool, data)
		require.NoError(t, err, tool)
		assert.NotEmpty(t, p.User, tool)
	}
}
