package bot

// Command constants for Telegram bot commands.
const (
	CommandStart          = "/start"
	CommandPromote        = "/promote"
	CommandMyQuestions    = "/myquestions"
	CommandMyQuestionsAlt = "/my_questions"
	CommandCancel         = "/cancel"
)
