package timeline

import (
	"github.com/newtron-network/breathe/pkg/util"
	"github.com/sirupsen/logrus"
)

// LogrusSink writes timeline entries through the package logger, one
// structured log line per entry. Fields carry through as logrus fields;
// the event name and severity are promoted to dedicated keys so they're
// easy to grep or filter on downstream.
type LogrusSink struct{}

func (LogrusSink) Write(e Entry) {
	fields := make(logrus.Fields, len(e.Fields)+2)
	for k, v := range e.Fields {
		fields[k] = v
	}
	fields["event"] = e.Event
	fields["severity"] = e.Severity.String()
	entry := util.Logger.WithFields(fields)
	switch e.Severity {
	case SeverityWarning:
		entry.Warn(e.Event)
	case SeverityInfo:
		entry.Info(e.Event)
	default:
		entry.Debug(e.Event)
	}
}
