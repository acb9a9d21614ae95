package pdfrender

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

func sampleTest() *models.TestResponse {
	return &models.TestResponse{
		Title: "Üslü Sayılar <Deneme>",
		Questions: []models.TestQuestion{
			{
				Question:      "2^3 kaçtır?",
				Options:       []string{"6", "8", "9", "4", "2"},
				CorrectAnswer: "B",
				Explanation:   "2·2·2 = 8",
			},
			{
				Question:      "3^2 kaçtır?",
				Options:       []string{"6", "8", "9", "4", "2"},
				CorrectAnswer: "C",
			},
		},
	}
}

func TestHTMLWithoutAnswers(t *testing.T) {
	out, err := HTML(sampleTest(), false)
	require.NoError(t, err)
	page := string(out)

	assert.Contains(t, page, "<strong>1.</strong> 2^3 kaçtır?")
	assert.Contains(t, page, "<strong>2.</strong> 3^2 kaçtır?")
	assert.Contains(t, page, "E) 2")
	assert.NotContains(t, page, "Cevap Anahtarı")
	// Titles are escaped
	assert.Contains(t, page, "Üslü Sayılar &lt;Deneme&gt;")
}

func TestHTMLWithAnswers(t *testing.T) {
	out, err := HTML(sampleTest(), true)
	require.NoError(t, err)
	page := string(out)

	assert.Contains(t, page, "Cevap Anahtarı")
	assert.Contains(t, page, "<td>1</td><td>B</td>")
	assert.Contains(t, page, "<td>2</td><td>C</td>")
	assert.Equal(t, 2, strings.Count(page, `<div class="question">`))
}
