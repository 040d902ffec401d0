package logger_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/logger"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestFileOutput(t *testing.T) {
	t.Log("Given the need to write logs to a rotated file.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a file path is configured.", testID)
		{
			path := filepath.Join(t.TempDir(), "ledger.log")

			log, err := logger.New("TEST", path)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to construct the logger: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to construct the logger.", success, testID)

			log.Infow("startup", "status", "testing")
			log.Sync()

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to read the log file: %v", failed, testID, err)
			}

			if !strings.Contains(string(data), `"service":"TEST"`) {
				t.Fatalf("\t%s\tTest %d:\tShould tag entries with the service: %s", failed, testID, data)
			}
			t.Logf("\t%s\tTest %d:\tShould tag entries with the service.", success, testID)

			// A second logger shares the registered sink.
			if _, err := logger.New("OTHER"); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to construct a second logger: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to construct a second logger.", success, testID)
		}
	}
}
