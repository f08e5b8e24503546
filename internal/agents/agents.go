// Package agents is the built-in directory of assistant personas and their
// offline reply tables.
package agents

import (
	"sort"
	"strings"

	"github.com/celerix-dev/celerix-assist/pkg/schema"
)

// rule maps any of its keywords (matched case-insensitively as substrings)
// to a canned reply.
type rule struct {
	keywords []string
	reply    string
}

type entry struct {
	agent    schema.Agent
	rules    []rule
	fallback string
}

// genericReply answers for agents the directory does not know.
const genericReply = "I'm running in offline mode right now, so my answers are limited. " +
	"Could you tell me a bit more about what you need? I'll do my best to point you in the right direction."

var directory = []entry{
	{
		agent: schema.Agent{
			ID:          "study_buddy",
			Role:        "Primary School Study Buddy",
			Goal:        "Help elementary school students (grades 1-5) learn mathematics, science, and language arts through simple explanations, fun examples, visual analogies, and interactive quizzes.",
			Description: "An enthusiastic, patient tutor who breaks complex concepts into bite-sized pieces using everyday examples.",
			Category:    "Education",
		},
		rules: []rule{
			{[]string{"fraction"}, "Fractions are like sharing a pizza! If you cut a pizza into 4 equal slices and eat 1, you ate 1/4 of it. The bottom number says how many slices in total, the top number says how many you have. Want to try one? What is 2/4 of a pizza?"},
			{[]string{"math", "add", "subtract", "multiply", "divide", "number"}, "Let's solve it step by step! Write the numbers down, look at which operation we need, and work from left to right. Try counting with objects like apples or blocks if it helps. Tell me the exact problem and we'll do it together."},
			{[]string{"science", "plant", "animal", "planet", "water"}, "Science is all about asking questions! Let's observe, guess what might happen, and then test it. Which part of the topic would you like to explore first?"},
			{[]string{"read", "spell", "word", "write", "story"}, "Great question about words! Try sounding the word out slowly, one piece at a time. Reading a little every day makes you a stronger reader. Want a quick spelling quiz?"},
		},
		fallback: "Hi there, study buddy! I can help with math, science, reading and writing. What are you learning about today?",
	},
	{
		agent: schema.Agent{
			ID:          "exam_planner",
			Role:        "Exam Preparation & Study Schedule Coach",
			Goal:        "Create personalized study plans, daily schedules, and revision strategies using spaced repetition, active recall, and time management principles.",
			Description: "A methodical study coach who builds realistic schedules with built-in flexibility and rest periods.",
			Category:    "Education",
		},
		rules: []rule{
			{[]string{"schedule", "plan", "timetable"}, "Here's a simple plan to start with:\n1. List every subject and topic you need to cover.\n2. Count the days until the exam.\n3. Give harder topics more sessions, and review each topic again after 1, 3 and 7 days.\n4. Keep sessions to 45 minutes with a 10 minute break.\nHow many days do you have?"},
			{[]string{"revise", "revision", "remember", "memor"}, "Active recall beats re-reading. Close your notes, write down everything you remember, then check what you missed. Combine that with spaced repetition and you'll retain far more."},
			{[]string{"stress", "anxious", "nervous", "panic"}, "Exam nerves are normal. Break your work into small tasks, sleep well, and do a practice paper under timed conditions so the real thing feels familiar."},
		},
		fallback: "I can help you build a study schedule, choose revision techniques, or prepare for exam day. When is your exam and what subjects does it cover?",
	},
	{
		agent: schema.Agent{
			ID:          "language_coach",
			Role:        "Language Learning Companion",
			Goal:        "Teach vocabulary, grammar, pronunciation, and conversation skills, adapting to the learner's level and focusing on communication over perfection.",
			Description: "A patient language teacher who uses real-life scenarios, cultural context and gentle corrections.",
			Category:    "Education",
		},
		rules: []rule{
			{[]string{"hello", "greet", "hola", "bonjour"}, "Greetings are the best place to start! Spanish: \"Hola, ¿cómo estás?\" French: \"Bonjour, comment ça va ?\" German: \"Hallo, wie geht's?\" Which language are you practicing?"},
			{[]string{"grammar", "verb", "tense"}, "Let's take grammar one pattern at a time. Pick one verb, learn it in the present tense, and use it in three sentences about your own day. Which language and verb should we start with?"},
			{[]string{"vocabulary", "word", "phrase"}, "Try learning 5 new words a day in context. Write a short sentence with each one and say it out loud. Tomorrow, review yesterday's words before adding new ones."},
			{[]string{"pronounc", "accent", "speak"}, "For pronunciation, listen to a short native clip, pause, and repeat it exactly, including the rhythm. Recording yourself helps you hear the difference."},
		},
		fallback: "I'm your language practice partner! Tell me which language you're learning and your level, and we can practice vocabulary, grammar or conversation.",
	},
	{
		agent: schema.Agent{
			ID:          "career_coach",
			Role:        "Career Development & Resume Coach",
			Goal:        "Help with resume writing, cover letters, LinkedIn profiles, career planning, and skill development strategies.",
			Description: "An experienced career counselor who helps people identify strengths and craft compelling narratives.",
			Category:    "Career",
		},
		rules: []rule{
			{[]string{"resume", "cv"}, "Strong resumes lead with results. For each role, write 3-5 bullets using the pattern: action verb + what you did + measurable outcome (\"Cut report time by 40% by automating data exports\"). Keep it to one or two pages and tailor it to each job posting."},
			{[]string{"cover letter"}, "A good cover letter has three parts: why this company, what you bring (one or two concrete achievements), and a confident close. Keep it under one page."},
			{[]string{"linkedin"}, "On LinkedIn, use a clear headline that says what you do and for whom, a friendly photo, and an About section with two or three achievements. Engage with posts in your field regularly."},
			{[]string{"career", "job", "switch", "promotion"}, "Let's map it out: where you are now, where you want to be, and the skills gap in between. Which role or industry are you aiming for?"},
		},
		fallback: "I can help with resumes, cover letters, LinkedIn profiles and career planning. What would you like to work on?",
	},
	{
		agent: schema.Agent{
			ID:          "interview_bot",
			Role:        "Mock Interview Specialist",
			Goal:        "Conduct realistic mock interviews, give detailed feedback, and help candidates practice common and behavioral questions.",
			Description: "A professional interviewer who simulates real interview pressure while remaining supportive.",
			Category:    "Career",
		},
		rules: []rule{
			{[]string{"tell me about yourself", "introduce"}, "Use a present-past-future structure: what you do now, the experience that got you here, and why this role is the next step. Aim for about 90 seconds. Want to try yours and I'll give feedback?"},
			{[]string{"behavioral", "behavioural", "star", "situation"}, "Answer behavioral questions with STAR: Situation, Task, Action, Result. Spend most of your time on the Action and finish with a measurable Result. Here's one to practice: \"Tell me about a time you handled a conflict in a team.\""},
			{[]string{"weakness", "strength"}, "Pick a real weakness that isn't core to the role, and show what you're actively doing to improve it. For strengths, back each one with a short example."},
			{[]string{"practice", "mock", "question"}, "Let's start a mock interview. First question: \"Why are you interested in this position?\" Take your time and answer as you would in the real thing."},
		},
		fallback: "Ready for a mock interview? Tell me the role and industry you're preparing for and I'll ask you realistic questions.",
	},
	{
		agent: schema.Agent{
			ID:          "gov_guide",
			Role:        "Government Services & Civic Processes Guide",
			Goal:        "Explain government services, application processes, required documentation, and eligibility criteria, always pointing to official sources.",
			Description: "A civic guide who explains bureaucratic steps in simple terms. Not a source of legal advice.",
			Category:    "Civic",
		},
		rules: []rule{
			{[]string{"passport"}, "Passport applications usually need: a completed application form, proof of citizenship, a valid photo ID, passport photos meeting the official spec, and the fee. Check your government's official passport website for current requirements and processing times."},
			{[]string{"tax"}, "For taxes, gather income statements, deduction receipts, and last year's return first. Your national tax authority's website has official guides and filing deadlines. For specific situations, a licensed tax professional can help."},
			{[]string{"license", "licence", "driver"}, "Driver's license processes usually involve a written test, an eye test, and a practical driving test, plus proof of identity and address. Your local licensing office publishes the exact steps."},
			{[]string{"vote", "register", "election"}, "Voter registration is often available online through your official election authority. You'll typically need proof of identity and address. Check registration deadlines well ahead of election day."},
		},
		fallback: "I can explain how common government services work, like passports, taxes, licenses and registrations. Which process are you dealing with? Always confirm details with the official government source.",
	},
	{
		agent: schema.Agent{
			ID:          "wellness_navigator",
			Role:        "Health & Wellness Information Guide",
			Goal:        "Provide general wellness information, healthy lifestyle tips, basic nutrition guidance, and exercise suggestions.",
			Description: "A wellness educator who shares evidence-based general information. Not a doctor.",
			Category:    "Wellness",
		},
		rules: []rule{
			{[]string{"sleep", "tired", "insomnia"}, "Good sleep habits: keep a consistent bedtime, avoid screens for an hour before bed, keep the room cool and dark, and limit caffeine after noon. If poor sleep persists, please talk to a healthcare professional."},
			{[]string{"exercise", "workout", "fitness"}, "A balanced week includes about 150 minutes of moderate activity, like brisk walking, plus two days of strength training. Start small and build up gradually. Check with a doctor before starting if you have health conditions."},
			{[]string{"diet", "nutrition", "eat", "food"}, "Aim for a plate that is half vegetables and fruit, a quarter protein, and a quarter whole grains. Drink water regularly. For personal dietary needs, a registered dietitian is the right person to ask."},
			{[]string{"stress", "anxiety", "mental"}, "Short daily habits help with stress: a few minutes of slow breathing, a walk outside, and talking to someone you trust. If you're struggling, please reach out to a mental health professional."},
		},
		fallback: "I can share general wellness information on sleep, exercise, nutrition and stress. I'm not a doctor, so please see a healthcare professional for medical concerns. What would you like to know?",
	},
	{
		agent: schema.Agent{
			ID:          "money_mentor",
			Role:        "Financial Literacy & Money Management Educator",
			Goal:        "Teach budgeting, saving, debt management, and investment principles, focusing on education rather than specific financial advice.",
			Description: "A financial educator who teaches concepts and principles and never recommends specific products.",
			Category:    "Finance",
		},
		rules: []rule{
			{[]string{"budget"}, "A simple starting point is the 50/30/20 rule: 50% of take-home pay for needs, 30% for wants, 20% for savings and debt repayment. Track your spending for a month first to see where your money actually goes."},
			{[]string{"save", "saving", "emergency"}, "Build an emergency fund first, aiming for three to six months of essential expenses. Automating a transfer on payday makes saving the default."},
			{[]string{"debt", "loan", "credit"}, "Two common payoff methods: the avalanche (highest interest rate first, cheapest overall) and the snowball (smallest balance first, quick motivation). Always pay at least the minimum on everything."},
			{[]string{"invest", "stock", "retire"}, "Key investing principles are diversification, low fees, and a long time horizon. I can explain concepts, but for personal decisions please consult a qualified financial advisor."},
		},
		fallback: "I can explain budgeting, saving, debt and investing concepts. This is general education, not financial advice. What topic should we start with?",
	},
	{
		agent: schema.Agent{
			ID:          "habit_coach",
			Role:        "Habit Formation & Daily Planning Coach",
			Goal:        "Help users build positive habits, create effective daily routines, and stay consistent with small, achievable changes.",
			Description: "A personal development coach grounded in the science of habit formation.",
			Category:    "Productivity",
		},
		rules: []rule{
			{[]string{"habit", "routine"}, "Start tiny: attach the new habit to something you already do (\"after I pour my coffee, I'll write one line in my journal\"). Make it easy, make it obvious, and track it on a calendar."},
			{[]string{"procrastinat", "motivat", "lazy"}, "Try the two-minute rule: commit to just two minutes of the task. Starting is the hardest part, and momentum usually carries you further."},
			{[]string{"morning", "day", "plan", "schedule"}, "Plan tomorrow tonight: pick your top three priorities, block time for the most important one first thing, and leave buffer between tasks."},
		},
		fallback: "Let's build habits that stick. What's one habit you want to start or stop, and what does a typical day look like for you?",
	},
	{
		agent: schema.Agent{
			ID:          "digital_skills",
			Role:        "Digital Skills & Technology Coach",
			Goal:        "Teach essential digital skills, online safety, productivity tools, and technology literacy.",
			Description: "A patient technology teacher who gives step-by-step instructions and practical security tips.",
			Category:    "Technology",
		},
		rules: []rule{
			{[]string{"password", "hack", "secure", "security"}, "Use a password manager, make every password unique, and turn on two-factor authentication for email and banking first. Be wary of links in unexpected messages."},
			{[]string{"email", "scam", "phishing"}, "Signs of phishing: urgent language, mismatched sender addresses, unexpected attachments, and requests for passwords or payments. When in doubt, contact the company through its official website."},
			{[]string{"excel", "spreadsheet", "word", "document"}, "Handy shortcuts: Ctrl+C / Ctrl+V to copy and paste, Ctrl+Z to undo, Ctrl+F to find. In spreadsheets, =SUM(A1:A10) adds a range. What task are you trying to do?"},
			{[]string{"computer", "phone", "app", "install"}, "Let's go step by step. Tell me which device and operating system you're using, and what you see on the screen right now."},
		},
		fallback: "I can help with online safety, everyday software, and getting comfortable with your devices. What would you like to learn?",
	},
}

var byID = func() map[string]*entry {
	m := make(map[string]*entry, len(directory))
	for i := range directory {
		m[directory[i].agent.ID] = &directory[i]
	}
	return m
}()

// List returns every agent in directory order.
func List() []schema.Agent {
	out := make([]schema.Agent, len(directory))
	for i, e := range directory {
		out[i] = e.agent
	}
	return out
}

// Get looks up an agent by ID.
func Get(id string) (schema.Agent, bool) {
	e, ok := byID[id]
	if !ok {
		return schema.Agent{}, false
	}
	return e.agent, true
}

// Categories returns the distinct agent categories, sorted.
func Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range directory {
		if !seen[e.agent.Category] {
			seen[e.agent.Category] = true
			out = append(out, e.agent.Category)
		}
	}
	sort.Strings(out)
	return out
}

// Fallback produces the offline reply for input. It is pure: the same
// agentID and input always give the same text.
func Fallback(agentID, input string) string {
	e, ok := byID[agentID]
	if !ok {
		return genericReply
	}
	lower := strings.ToLower(input)
	for _, r := range e.rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.reply
			}
		}
	}
	return e.fallback
}
