package trials

// Column handling is declarative: conversions list what each source field
// is called in the archive and how raw values decode, and NormalizeParams
// applies those tables. Adding a task variable means adding table entries,
// not code.

import "github.com/catalystneuro/constantinople-lab-to-nwb/pkg/types"

// ParamColumns maps behavioral controller field names to archived trial
// columns. Fields absent from the table pass through under their source
// name with an empty description.
var ParamColumns = map[string]types.ColumnSpec{
	"RewardAmount":    {Name: "reward_volume_ul", Description: "Volume of the water reward in microliters."},
	"RewardDelay":     {Name: "reward_delay_s", Description: "Programmed delay between choice and reward delivery in seconds."},
	"TrainingStage":   {Name: "training_stage", Description: "Stage of the training curriculum for this session."},
	"NoseInCenter":    {Name: "nose_in_center_s", Description: "Required center-port fixation time in seconds."},
	"side":            {Name: "side", Description: "Side of the lit choice port."},
	"block":           {Name: "block", Description: "Reward statistics block for this trial."},
	"hits":            {Name: "is_rewarded", Description: "Whether the trial ended in reward delivery."},
	"vios":            {Name: "is_violation", Description: "Whether the animal broke center fixation."},
	"optout":          {Name: "is_opt_out", Description: "Whether the animal opted out of the trial."},
	"wait_time":       {Name: "wait_time_s", Description: "Time the animal waited at the reward port in seconds."},
	"ITI":             {Name: "inter_trial_interval_s", Description: "Inter-trial interval preceding this trial in seconds."},
	"CatchTrial":      {Name: "is_catch_trial", Description: "Whether reward was withheld to probe willingness to wait."},
	"BlockLength":     {Name: "block_length", Description: "Number of trials per reward block."},
	"PunishViolation": {Name: "punish_violation", Description: "Whether fixation violations triggered a timeout."},
}

// Value decodings for categorical fields.
var (
	sideValues = map[string]string{
		"L": "Left",
		"R": "Right",
	}
	blockValues = map[int]string{
		1: "Mixed",
		2: "High",
		3: "Low",
	}
	// Fields logged as 0/1 flags that the archive stores as booleans.
	booleanFields = map[string]bool{
		"hits":            true,
		"vios":            true,
		"optout":          true,
		"CatchTrial":      true,
		"PunishViolation": true,
	}
)

// NormalizeParams renames per-trial parameter fields per ParamColumns and
// decodes categorical and flag values. Unknown fields are kept as-is so a
// new task variable is archived even before it gets a table entry.
func NormalizeParams(params []map[string]interface{}) []map[string]interface{} {
	return NormalizeParamsWith(params, ParamColumns)
}

// NormalizeParamsWith is NormalizeParams against an explicit column table,
// usually the result of MergeColumns with a session's metadata overrides.
func NormalizeParamsWith(params []map[string]interface{}, columns map[string]types.ColumnSpec) []map[string]interface{} {
	out := make([]map[string]interface{}, len(params))
	for i, p := range params {
		row := make(map[string]interface{}, len(p))
		for field, value := range p {
			name := field
			if spec, ok := columns[field]; ok && spec.Name != "" {
				name = spec.Name
			}
			row[name] = decodeValue(field, value)
		}
		out[i] = row
	}
	return out
}

// MergeColumns lays per-session overrides over ParamColumns, keyed by
// source field name. An override with an empty Name or Description keeps
// the built-in value for that part, so a metadata file can reword a
// description without repeating the column name.
func MergeColumns(overrides map[string]types.ColumnSpec) map[string]types.ColumnSpec {
	merged := make(map[string]types.ColumnSpec, len(ParamColumns)+len(overrides))
	for field, spec := range ParamColumns {
		merged[field] = spec
	}
	for field, o := range overrides {
		spec := merged[field]
		if o.Name != "" {
			spec.Name = o.Name
		}
		if o.Description != "" {
			spec.Description = o.Description
		}
		merged[field] = spec
	}
	return merged
}

// ColumnDescription returns the archived description for a source field,
// or the empty string for fields without a table entry.
func ColumnDescription(field string) string {
	return ParamColumns[field].Description
}

func decodeValue(field string, value interface{}) interface{} {
	switch field {
	case "side":
		if s, ok := value.(string); ok {
			if decoded, ok := sideValues[s]; ok {
				return decoded
			}
		}
		return value
	case "block":
		if b, ok := asInt(value); ok {
			if decoded, ok := blockValues[b]; ok {
				return decoded
			}
		}
		return value
	}
	if booleanFields[field] {
		if n, ok := asInt(value); ok {
			return n != 0
		}
		if f, ok := value.(bool); ok {
			return f
		}
	}
	return value
}

// asInt accepts the numeric types a JSON or settings parser may produce.
func asInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}
