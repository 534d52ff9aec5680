package flow

// reflectionQuestions are asked by the interrupt reminders, one per slot.
var reflectionQuestions = []string{
	"What am I avoiding right now by doing what I'm doing?",
	"If someone filmed the last two hours, what would they conclude I want from my life?",
	"Am I moving toward the life I hate or the life I want?",
	"What's the most important thing I'm pretending isn't important?",
	"What did I do today out of identity protection rather than genuine desire?",
	"When did I feel most alive today? When did I feel most dead?",
}

var footer = []string{
	`"Trust only movement. Life happens at the level of events, not of words."`,
	"- Alfred Adler",
}

var protocol = build(graphDecl{
	name:   "protocol",
	prefix: "protocol_",
	title:  "THE PROTOCOL - YOUR JOURNEY",
	footer: footer,
	chains: []chainDecl{
		{
			section:    SectionExcavation,
			title:      "Excavation",
			affordance: "continue-excavation",
			fields: []fieldDecl{
				{key: "q1", label: "What is the dull and persistent dissatisfaction you've learned to live with?"},
				{key: "q2", label: "What do you complain about repeatedly but never actually change?"},
				{key: "q3", label: "For each complaint: What would someone watching your behavior conclude you want?"},
				{key: "q4", label: "What truth about your current life would be unbearable to admit?"},
			},
		},
		{
			section:    SectionAntivision,
			title:      "Anti-Vision",
			affordance: "continue-antivision",
			fields: []fieldDecl{
				{key: "q5", label: "If nothing changes for five years, describe an average Tuesday."},
				{key: "q6", label: "Now ten years. What have you missed? What opportunities closed?"},
				{key: "q7", label: "You're at the end of your life. You lived the safe version. What was the cost?"},
				{key: "q8", label: "Who in your life is already living this future?"},
				{key: "antivision-statement", label: "Your anti-vision in one sentence:", section: SectionFinal},
			},
		},
		{
			section:    SectionVision,
			title:      "Vision",
			affordance: "continue-vision",
			fields: []fieldDecl{
				{key: "q9", label: "What identity would you have to give up to actually change?"},
				{key: "q10", label: "What is the most embarrassing reason you haven't changed?"},
				{key: "q11", label: "Forget practicality. What do you actually want in three years?"},
				{key: "q12", label: "What would you have to believe about yourself for that life to feel natural?"},
				{key: "q13", label: "What is one thing you would do this week if you were already that person?"},
				{key: "vision-statement", label: "Your vision in one sentence:", section: SectionFinal},
			},
		},
		{
			section:    SectionSynthesis,
			title:      "Synthesis",
			affordance: "continue-synthesis",
			fields: []fieldDecl{
				{key: "s1", label: "After today, what feels most true about why you've been stuck?"},
				{key: "s2", label: "What is the actual enemy?"},
				{key: "s3", label: "One-year lens:"},
				{key: "s4", label: "One-month lens:"},
				{key: "s5", label: "Daily lens:"},
			},
		},
	},
	taps: map[Channel]string{
		ChannelAntivision: "antivision-statement",
		ChannelVision:     "vision-statement",
	},
	questions: reflectionQuestions,
})

var journey = build(graphDecl{
	name:   "journey",
	prefix: "journey_",
	title:  "THE PROTOCOL - GAME PLAN",
	footer: footer,
	chains: []chainDecl{
		{
			section:    SectionExcavation,
			title:      "Morning Session",
			affordance: "continue-morning",
			fields: []fieldDecl{
				{key: "morning-q1", label: "What is the dull and persistent dissatisfaction?"},
				{key: "morning-q2", label: "What do you complain about but never change?"},
				{key: "morning-q3", label: "What would someone watching your behavior conclude?"},
				{key: "morning-q4", label: "What truth would be unbearable to admit?"},
			},
		},
		{
			section:    SectionAntivision,
			title:      "What's at Stake",
			affordance: "continue-stake",
			fields: []fieldDecl{
				{key: "morning-q5", label: "Five years, same life - describe Tuesday."},
				{key: "morning-q6", label: "Ten years - what did you miss?"},
				{key: "morning-q7", label: "End of life, safe version - what was the cost?"},
				{key: "gameplan-antivision", label: "ANTI-VISION (What's at stake)", section: SectionFinal},
			},
		},
		{
			section:    SectionVision,
			title:      "How You Win",
			affordance: "continue-win",
			fields: []fieldDecl{
				{key: "morning-q12", label: "What do you actually want in three years?"},
				{key: "morning-q13", label: "What would you need to believe?"},
				{key: "gameplan-vision", label: "VISION (How you win)", section: SectionFinal},
			},
		},
		{
			section:    SectionSynthesis,
			title:      "Your Game Plan",
			affordance: "continue-gameplan",
			fields: []fieldDecl{
				{key: "gameplan-year", label: "1 YEAR GOAL (The mission)"},
				{key: "gameplan-month", label: "1 MONTH PROJECT (Boss fight)"},
				{key: "gameplan-daily", label: "DAILY LEVERS (Quests)"},
				{key: "gameplan-constraints", label: "CONSTRAINTS (Rules)"},
			},
		},
	},
	taps: map[Channel]string{
		ChannelAntivision: "gameplan-antivision",
		ChannelVision:     "gameplan-vision",
	},
	questions: reflectionQuestions,
})

// Protocol is the reflection questionnaire: excavation, anti-vision, vision, synthesis.
func Protocol() *Graph { return protocol }

// Journey is the game-plan variant of the same flow with its own labels and storage prefix.
func Journey() *Graph { return journey }
