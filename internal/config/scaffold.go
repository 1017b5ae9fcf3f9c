package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SampleDocumentName is the example display configuration written by
// ScaffoldProject, ready for "kurokku config set".
const SampleDocumentName = "widgets.yaml"

// stateIgnoreEntry keeps the supervisor state file out of version control.
const stateIgnoreEntry = ".kurokku/engine-state.json"

// ScaffoldProject creates kurokku.toml, a sample widgets.yaml and a
// .gitignore entry for the state file in dir. Files that already exist are
// left untouched. Returns the list of created or modified paths.
func ScaffoldProject(dir string) ([]string, error) {
	var created []string

	tomlPath := filepath.Join(dir, FileName)
	if _, err := os.Stat(tomlPath); os.IsNotExist(err) {
		if _, initErr := InitFile(dir); initErr != nil {
			return created, initErr
		}
		created = append(created, tomlPath)
	}

	samplePath := filepath.Join(dir, SampleDocumentName)
	if _, err := os.Stat(samplePath); os.IsNotExist(err) {
		if writeErr := os.WriteFile(samplePath, []byte(SampleDocument), 0644); writeErr != nil {
			return created, fmt.Errorf("scaffold: write %s: %w", samplePath, writeErr)
		}
		created = append(created, samplePath)
	}

	gitignorePath := filepath.Join(dir, ".gitignore")
	existing, err := os.ReadFile(gitignorePath)
	if os.IsNotExist(err) {
		if writeErr := os.WriteFile(gitignorePath, []byte(stateIgnoreEntry+"\n"), 0644); writeErr != nil {
			return created, fmt.Errorf("scaffold: write %s: %w", gitignorePath, writeErr)
		}
		created = append(created, gitignorePath)
	} else if err != nil {
		return created, fmt.Errorf("scaffold: read %s: %w", gitignorePath, err)
	} else if !strings.Contains(string(existing), stateIgnoreEntry) {
		content := string(existing)
		if len(content) > 0 && content[len(content)-1] != '\n' {
			content += "\n"
		}
		content += stateIgnoreEntry + "\n"
		if writeErr := os.WriteFile(gitignorePath, []byte(content), 0644); writeErr != nil {
			return created, fmt.Errorf("scaffold: write %s: %w", gitignorePath, writeErr)
		}
		created = append(created, gitignorePath)
	}

	return created, nil
}

// SampleDocument is a display configuration exercising every widget type.
const SampleDocument = `# Display configuration. Load it with: kurokku config set widgets.yaml
widgets:
  - widget_type: alert
  - widget_type: clock
    duration: 10
    use_24_hour_format: true
  - widget_type: message
    message: "LED Kurokku"
    duration: 6
    scroll_speed: 0.3
    repeat: true
  - widget_type: animation
    duration: 3
    scroll_speed: 0.1
    cron_minute: "*/15"
    frames:
      - segments: [1, 0, 0, 0]
      - segments: [0, 1, 0, 0]
      - segments: [0, 0, 1, 0]
      - segments: [0, 0, 0, 1]
brightness:
  begin: "08:00"
  end: "20:00"
  high: 7
  low: 2
`
