package models

// AI tool names, used as metric labels and in logs
const (
	ToolSummarize  = "summarize_pdf"
	ToolSolve      = "solve_question"
	ToolExplain    = "explain_topic"
	ToolFlashcards = "flashcards"
	ToolTest       = "generate_test"
)

// ExamLevel is the exam a student prepares for
type ExamLevel string

const (
	ExamLevelYKS ExamLevel = "YKS"
	ExamLevelLGS ExamLevel = "LGS"
)

// SummarizeRequest asks for a summary of text extracted from a PDF
type SummarizeRequest struct {
	PDFText string    `json:"pdf_text" binding:"required,max=200000"`
	Level   ExamLevel `json:"level,omitempty" binding:"omitempty,oneof=YKS LGS"`
}

// SummarizeResponse is the model output for SummarizeRequest
type SummarizeResponse struct {
	Summary   string   `json:"summary" validate:"required"`
	KeyPoints []string `json:"key_points" validate:"required,min=1,dive,required"`
}

// SolveRequest asks for a step-by-step solution
type SolveRequest struct {
	Question     string `json:"question" binding:"required_without=ImageDataURI,max=10000"`
	Subject      string `json:"subject,omitempty" binding:"max=100"`
	ImageDataURI string `json:"image_data_uri,omitempty" binding:"omitempty,startswith=data:image/"`
}

// SolveResponse is the model output for SolveRequest
type SolveResponse struct {
	Answer      string   `json:"answer" validate:"required"`
	Steps       []string `json:"steps" validate:"required,min=1,dive,required"`
	Explanation string   `json:"explanation" validate:"required"`
}

// ExplainRequest asks for a topic explanation
type ExplainRequest struct {
	Topic string    `json:"topic" binding:"required,max=300"`
	Level ExamLevel `json:"level" binding:"required,oneof=YKS LGS"`
}

// ExplainResponse is the model output for ExplainRequest
type ExplainResponse struct {
	Explanation string   `json:"explanation" validate:"required"`
	Examples    []string `json:"examples" validate:"dive,required"`
	Tips        []string `json:"tips" validate:"dive,required"`
}

// FlashcardsRequest asks for flashcards from a text or a topic
type FlashcardsRequest struct {
	Text  string `json:"text,omitempty" binding:"required_without=Topic,max=100000"`
	Topic string `json:"topic,omitempty" binding:"max=300"`
	Count int    `json:"count" binding:"required,min=1,max=30"`
}

// Flashcard is one question/answer card
type Flashcard struct {
	Front string `json:"front" validate:"required"`
	Back  string `json:"back" validate:"required"`
}

// FlashcardsResponse is the model output for FlashcardsRequest
type FlashcardsResponse struct {
	Cards []Flashcard `json:"cards" validate:"required,min=1,dive"`
}

// TestRequest asks for a multiple-choice practice test
type TestRequest struct {
	Subject       string `json:"subject" binding:"required,max=100"`
	Topic         string `json:"topic" binding:"required,max=300"`
	QuestionCount int    `json:"question_count" binding:"required,min=1,max=40"`
	Difficulty    string `json:"difficulty" binding:"required,oneof=easy medium hard"`
}

// TestQuestion is one multiple-choice question with five options
type TestQuestion struct {
	Question      string   `json:"question" validate:"required"`
	Options       []string `json:"options" validate:"len=5,dive,required"`
	CorrectAnswer string   `json:"correct_answer" validate:"required,oneof=A B C D E"`
	Explanation   string   `json:"explanation"`
}

// TestResponse is the model output for TestRequest
type TestResponse struct {
	Title     string         `json:"title" validate:"required"`
	Questions []TestQuestion `json:"questions" validate:"required,min=1,dive"`
}

// RenderTestRequest asks for a generated test to be printed to PDF
type RenderTestRequest struct {
	Test        TestResponse `json:"test" binding:"required"`
	WithAnswers bool         `json:"with_answers"`
}

// ToolResult wraps a tool output with the caller's remaining quota
type ToolResult struct {
	Tool           string      `json:"tool"`
	Result         interface{} `json:"result"`
	RemainingQuota int         `json:"remaining_quota"`
	Cached         bool        `json:"cached,omitempty"`
}
