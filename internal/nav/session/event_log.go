package session

import "time"

type LogEntry struct {
	Timestamp time.Time
	Kind      string
	Message   string
	IsUrgent  bool
}

func (s *Session) addLogEntry(kind, message string, isUrgent bool) {
	entry := LogEntry{
		Timestamp: s.now(),
		Kind:      kind,
		Message:   message,
		IsUrgent:  isUrgent,
	}
	s.EventLog = append(s.EventLog, entry)

	if len(s.EventLog) > s.maxEventLogSize {
		s.EventLog = s.EventLog[len(s.EventLog)-s.maxEventLogSize:]
	}
}
