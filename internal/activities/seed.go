package activities

const defaultActivityXP = 10

type seedActivity struct {
	name        string
	description string
}

// Default activity catalog shipped with the service. Seeded once at
// startup; users layer their own custom activities on top.
var defaultCatalog = map[Category][]seedActivity{
	CategoryMindBody: {
		{name: "Weight Lifting", description: "Strength training with weights"},
		{name: "Jiu Jitsu", description: "Brazilian Jiu-Jitsu training"},
		{name: "Boxing", description: "Boxing training or practice"},
		{name: "Walking", description: "Walking for exercise"},
		{name: "Running", description: "Running or jogging"},
		{name: "Yoga", description: "Yoga practice"},
		{name: "Swimming", description: "Swimming for exercise"},
		{name: "Cycling", description: "Cycling or biking"},
		{name: "HIIT", description: "High-Intensity Interval Training"},
		{name: "Pilates", description: "Pilates workout"},
		{name: "Cold Plunge", description: "Cold water immersion"},
		{name: "Sauna", description: "Sauna session"},
		{name: "Stretching", description: "Stretching routine"},
		{name: "Breathwork", description: "Breathing exercises"},
		{name: "Massage", description: "Massage therapy"},
		{name: "Meditation", description: "Meditation practice"},
		{name: "Reading", description: "Reading for leisure"},
		{name: "Crossword Puzzle", description: "Solving crossword puzzles"},
		{name: "Sudoku", description: "Playing Sudoku"},
		{name: "Chess", description: "Playing chess"},
		{name: "Board Game", description: "Playing board games"},
		{name: "Language Learning", description: "Learning a new language"},
		{name: "Mindfulness", description: "Mindfulness practice"},
	},
	CategoryGrowthCreation: {
		{name: "Learning New Skill", description: "Learning a new skill"},
		{name: "Online Course", description: "Taking an online course"},
		{name: "Educational Reading", description: "Reading educational material"},
		{name: "Skill Practice", description: "Practicing a skill"},
		{name: "Work", description: "Focused work time"},
		{name: "Side Hustle", description: "Working on side projects"},
		{name: "Networking", description: "Professional networking"},
		{name: "Job Search", description: "Job searching activities"},
		{name: "Journaling", description: "Writing in journal"},
		{name: "Goal Setting", description: "Setting and reviewing goals"},
		{name: "Daily Reflection", description: "Daily reflection practice"},
		{name: "Clean Eating", description: "Healthy eating habits"},
		{name: "Meal Prep", description: "Preparing healthy meals"},
		{name: "Organizing", description: "Organizing space or tasks"},
		{name: "Planning", description: "Planning and scheduling"},
	},
	CategoryPurposePeople: {
		{name: "Family Dinner", description: "Having dinner with family"},
		{name: "Family Time", description: "Quality time with family"},
		{name: "Family Call", description: "Calling family members"},
		{name: "Family Activity", description: "Activity with family"},
		{name: "Night Out with Friends", description: "Social time with friends"},
		{name: "Call a Friend", description: "Calling friends"},
		{name: "Social Activity", description: "Group social activity"},
		{name: "Dating", description: "Dating activities"},
		{name: "Volunteering", description: "Volunteer work"},
		{name: "Community Event", description: "Attending community events"},
		{name: "Mentoring", description: "Mentoring others"},
		{name: "Hobby Time", description: "Working on hobbies"},
		{name: "Creative Project", description: "Creative activities"},
		{name: "Playing Music", description: "Playing musical instruments"},
	},
}

// DefaultActivities materializes the seed catalog with ids from the
// provided generator. Ordering follows Categories() then seed order so
// repeated runs enumerate deterministically.
func DefaultActivities(newID func() (string, error)) ([]Activity, error) {
	var seeded []Activity
	for _, category := range Categories() {
		for _, seed := range defaultCatalog[category] {
			id, err := newID()
			if err != nil {
				return nil, err
			}
			seeded = append(seeded, Activity{
				ActivityID:  id,
				Name:        seed.name,
				Category:    category.String(),
				Description: seed.description,
				Origin:      OriginDefault,
				XPValue:     defaultActivityXP,
			})
		}
	}
	return seeded, nil
}
