package plan

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ShayCichocki/brigade/pkg/models"
)

const thinkEnd = "</think>"

// ParseOutput extracts tasks from a planner model's answer. A leading
// reasoning block closed by </think> and markdown code fences are dropped.
// The answer may be an object with a "tasks" array or the array itself.
func ParseOutput(text string) ([]*models.Task, error) {
	content := CleanOutput(text)
	if !gjson.Valid(content) {
		return nil, fmt.Errorf("planner output is not valid JSON")
	}

	list := gjson.Get(content, "tasks")
	if !list.Exists() {
		list = gjson.Parse(content)
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("planner output has no tasks array")
	}

	var tasks []*models.Task
	for _, item := range list.Array() {
		role := item.Get("role").String()
		if role == "" {
			role = item.Get("assignee").String()
		}

		var deps []string
		for _, d := range item.Get("dependencies").Array() {
			deps = append(deps, d.String())
		}

		tasks = append(tasks, newTask(item.Get("id").String(), role, item.Get("instruction").String(), deps))
	}

	if err := checkTasks(tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CleanOutput strips reasoning and code fences from a model answer.
func CleanOutput(text string) string {
	if i := strings.LastIndex(text, thinkEnd); i >= 0 {
		text = text[i+len(thinkEnd):]
	}
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}
