package analysis

// #region emotions

type category struct {
	name     string
	keywords []string
}

var emotionTable = []category{
	{"anxiety", []string{"anxious", "anxiety", "worried", "worry", "nervous", "panic", "scared", "afraid"}},
	{"sadness", []string{"sad", "depressed", "unhappy", "down", "lonely", "empty", "grief"}},
	{"anger", []string{"angry", "frustrated", "irritated", "mad at", "so mad", "furious", "resent"}},
	{"joy", []string{"happy", "excited", "glad", "pleased", "grateful", "relieved"}},
	{"confusion", []string{"confused", "uncertain", "unsure", "unclear", "lost"}},
}

// #endregion emotions

// #region cognitive-patterns

var patternTable = []category{
	{"all_or_nothing", []string{"always", "never", "perfect", "failure", "everything", "nothing"}},
	{"catastrophizing", []string{"disaster", "terrible", "awful", "worst", "ruined"}},
	{"mind_reading", []string{"they think", "they must", "probably think", "everyone thinks"}},
	{"fortune_telling", []string{"will happen", "going to", "expect", "bound to"}},
}

// #endregion cognitive-patterns

// #region value-conflicts

// A value conflict needs at least two keyword hits across its list.
var conflictTable = []category{
	{"security_vs_freedom", []string{"safe", "security", "stable", "stability", "free to", "freedom", "independent", "risk"}},
	{"individual_vs_relationship", []string{"myself", "my own", "partner", "family", "friends", "relationship", "alone"}},
	{"growth_vs_comfort", []string{"growing", "growth", "change", "comfort", "familiar", "challenge"}},
}

var conflictDescriptions = map[string]string{
	"security_vs_freedom":        "a tension between security and freedom",
	"individual_vs_relationship": "a tension between the self and belonging",
	"growth_vs_comfort":          "a tension between growth and comfort",
}

// #endregion value-conflicts

// #region themes

var themeTable = []category{
	{"comparison", []string{"compare", "comparison", "behind", "ahead of", "better than", "everyone else", "others have"}},
	{"perfection", []string{"perfect", "perfection", "flawless", "good enough", "not enough"}},
	{"approval", []string{"approval", "approve", "validation", "what others think", "disappoint", "please everyone"}},
	{"identity", []string{"who i am", "identity", "myself", "real me", "pretend"}},
	{"control", []string{"control", "be certain", "need certainty", "predict", "plan everything"}},
	{"guilt", []string{"guilt", "guilty", "selfish", "ashamed", "i owe"}},
	{"uncertainty", []string{"uncertain", "unsure", "don't know", "no idea", "direction"}},
	{"failure", []string{"fail", "failing", "failure", "mistake", "messed up"}},
}

// themeFramings holds one framing statement per theme, used when a response
// needs a synthesized statement.
var themeFramings = map[string]string{
	"comparison":  "Comparison creates hierarchy from difference.",
	"perfection":  "Perfectionism protects against being seen.",
	"approval":    "External approval replaces internal validation.",
	"identity":    "Identity becomes performance for others.",
	"control":     "Control attempts to tame uncertainty.",
	"guilt":       "Guilt often guards the boundary between belonging and autonomy.",
	"uncertainty": "Uncertainty appears when inherited desires begin to loosen.",
	"failure":     "Failure becomes identity when repetition is mistaken for destiny.",
}

var themeQuestions = map[string]string{
	"comparison":  "Whose measure created this comparison?",
	"perfection":  "What does this perfection protect against?",
	"approval":    "Whose approval became your authority?",
	"identity":    "What performance replaced your being?",
	"control":     "What uncertainty does this control tame?",
	"guilt":       "What definition of loyalty makes choosing yourself feel like betrayal?",
	"uncertainty": "If expectation disappeared, what direction would remain unborrowed?",
	"failure":     "What assumption links your next outcome to your last one?",
}

// #endregion themes

// #region focus

// Focus is the kind of inquiry a turn calls for.
type Focus string

const (
	FocusEmotional   Focus = "emotional_clarification"
	FocusAssumption  Focus = "assumption_exposure"
	FocusValues      Focus = "value_conflict"
	FocusPerspective Focus = "perspective_broadening"
	FocusPattern     Focus = "pattern_recognition"
)

var focusDescriptions = map[Focus]string{
	FocusEmotional:   "clarify what the feeling is pointing at",
	FocusAssumption:  "expose the assumption underneath the statement",
	FocusValues:      "name the values pulling against each other",
	FocusPerspective: "widen the frame beyond the immediate situation",
	FocusPattern:     "notice the pattern repeating across the conversation",
}

// #endregion focus
