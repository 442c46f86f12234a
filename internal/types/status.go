package types

import (
	"fmt"
	"strings"
)

type Stage string

const (
	StageCreate Stage = "Create"
	StageUpdate Stage = "Update"
	StageCheck  Stage = "Check"
	StageDelete Stage = "Delete"
)

var Stages = []Stage{StageCreate, StageUpdate, StageCheck, StageDelete}

func (s Stage) String() string {
	return string(s)
}

// ParseStage matches a stage name case-insensitively.
func ParseStage(name string) (Stage, error) {
	for _, stage := range Stages {
		if strings.EqualFold(strings.TrimSpace(name), string(stage)) {
			return stage, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", name)
}
