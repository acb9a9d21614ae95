package aiflow

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

const systemPrompt = `Sen Türkiye'deki YKS ve LGS sınavlarına hazırlanan öğrencilere yardım eden deneyimli bir öğretmensin.
Yanıtlarını Türkçe ver. Yalnızca istenen JSON nesnesini döndür, başka metin ekleme.`

var prompts = template.Must(template.New("prompts").Funcs(template.FuncMap{
	"levelName":      levelName,
	"difficultyName": difficultyName,
}).Parse(`
{{define "summarize_pdf"}}Aşağıdaki ders notunu {{levelName .Level}} öğrencisi için özetle.
Şu JSON biçiminde yanıt ver:
{"summary": "...", "key_points": ["...", "..."]}

METİN:
{{.PDFText}}
{{end}}

{{define "solve_question"}}Aşağıdaki soruyu adım adım çöz.{{if .Subject}} Ders: {{.Subject}}.{{end}}
{{if .ImageDataURI}}Soru ekteki görselde yer alıyor.{{end}}
Şu JSON biçiminde yanıt ver:
{"answer": "...", "steps": ["...", "..."], "explanation": "..."}
{{if .Question}}
SORU:
{{.Question}}
{{end}}{{end}}

{{define "explain_topic"}}"{{.Topic}}" konusunu {{levelName .Level}} seviyesinde açıkla.
Şu JSON biçiminde yanıt ver:
{"explanation": "...", "examples": ["..."], "tips": ["..."]}
{{end}}

{{define "flashcards"}}{{.Count}} adet bilgi kartı hazırla.{{if .Topic}} Konu: {{.Topic}}.{{end}}
Şu JSON biçiminde yanıt ver:
{"cards": [{"front": "...", "back": "..."}]}
{{if .Text}}
METİN:
{{.Text}}
{{end}}{{end}}

{{define "generate_test"}}{{.Subject}} dersinden "{{.Topic}}" konusunda {{.QuestionCount}} soruluk, {{difficultyName .Difficulty}} zorlukta çoktan seçmeli bir test hazırla.
Her sorunun tam olarak 5 seçeneği olsun ve doğru cevap A, B, C, D veya E harfiyle verilsin.
Şu JSON biçiminde yanıt ver:
{"title": "...", "questions": [{"question": "...", "options": ["...", "...", "...", "...", "..."], "correct_answer": "A", "explanation": "..."}]}
{{end}}
`))

func levelName(level models.ExamLevel) string {
	switch level {
	case models.ExamLevelLGS:
		return "LGS"
	case models.ExamLevelYKS:
		return "YKS"
	default:
		return "lise"
	}
}

func difficultyName(d string) string {
	switch d {
	case "easy":
		return "kolay"
	case "hard":
		return "zor"
	default:
		return "orta"
	}
}

// render executes the named prompt template
func render(name string, data interface{}) (Prompt, error) {
	var b strings.Builder
	if err := prompts.ExecuteTemplate(&b, name, data); err != nil {
		return Prompt{}, fmt.Errorf("failed to render %s prompt: %w", name, err)
	}
	return Prompt{System: systemPrompt, User: strings.TrimSpace(b.String())}, nil
}
