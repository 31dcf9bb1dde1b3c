package model

// exerciseTypeNames maps the gateway's numeric exercise type codes to
// human-readable labels. Codes follow the Health Connect exercise type
// constants.
var exerciseTypeNames = map[int]string{
	0:  "other_workout",
	2:  "badminton",
	4:  "baseball",
	5:  "basketball",
	8:  "biking",
	9:  "biking_stationary",
	10: "boot_camp",
	11: "boxing",
	13: "calisthenics",
	14: "cricket",
	16: "dancing",
	25: "elliptical",
	26: "exercise_class",
	27: "fencing",
	28: "football_american",
	29: "football_australian",
	31: "frisbee_disc",
	32: "golf",
	33: "guided_breathing",
	34: "gymnastics",
	35: "handball",
	36: "high_intensity_interval_training",
	37: "hiking",
	38: "ice_hockey",
	39: "ice_skating",
	44: "martial_arts",
	46: "paddling",
	47: "paragliding",
	48: "pilates",
	50: "racquetball",
	51: "rock_climbing",
	52: "roller_hockey",
	53: "rowing",
	54: "rowing_machine",
	55: "rugby",
	56: "running",
	57: "running_treadmill",
	58: "sailing",
	59: "scuba_diving",
	60: "skating",
	61: "skiing",
	62: "snowboarding",
	63: "snowshoeing",
	64: "soccer",
	65: "softball",
	66: "squash",
	68: "stair_climbing",
	69: "stair_climbing_machine",
	70: "strength_training",
	71: "stretching",
	72: "surfing",
	73: "swimming_open_water",
	74: "swimming_pool",
	75: "table_tennis",
	76: "tennis",
	78: "volleyball",
	79: "walking",
	80: "water_polo",
	81: "weightlifting",
	82: "wheelchair",
	83: "yoga",
}

// ExerciseTypeName returns the label for a raw exercise type code.
// Unmapped codes fall back to "unknown" — an unrecognised workout must
// still be persisted, never dropped.
func ExerciseTypeName(code int) string {
	if name, ok := exerciseTypeNames[code]; ok {
		return name
	}
	return "unknown"
}
