package config

type WorkerKeyStruct struct {
	PersistAnswersQueue    string
	PersistViolationsQueue string
	PersistScoresQueue     string
	PersistProgressQueue   string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue:    "persist_answers_queue",
	PersistViolationsQueue: "persist_violations_queue",
	PersistScoresQueue:     "persist_scores_queue",
	PersistProgressQueue:   "persist_progress_queue",
}
