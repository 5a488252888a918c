package database

// Logger, paket içinde kullanılan minimal log arayüzüdür. Standart
// *log.Logger bu arayüzü doğrudan sağlar.
type Logger interface {
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...interface{}) {}
func (nopLogger) Println(...interface{})        {}

func loggerOrNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}
