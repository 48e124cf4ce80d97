// Package conflicts detects mutually incompatible technology decisions.
//
// A Checker is a strategy keyed by category name; it receives every decision
// value recorded under its category for one project and returns zero or more
// conflicts. The static rule table below is the single source of truth for
// categories and their vocabularies, used both to classify free-text decision
// values and to run detection. Adding a category means adding one Checker and
// one table entry; the detection entry point never changes.
package conflicts

import (
	"sort"

	"github.com/mentorstack/mentor-engine/pkg/models"
)

// Checker inspects all decision values recorded under one category.
// Checkers must be pure: for a fixed input, identical output in content and
// order.
type Checker func(values []string) []models.ConflictInfo

// rule binds a category to its keyword vocabulary and Checker.
type rule struct {
	category string
	// vocab maps a lowercase keyword to the canonical technology name.
	// Two values matching the same keyword are one choice, not a conflict.
	vocab map[string]string
	check Checker
}

// ruleTable is ordered; classification and detection walk it in this order so
// results are deterministic.
var ruleTable = []rule{
	{
		category: "databases",
		vocab: map[string]string{
			"postgresql": "PostgreSQL", "postgres": "PostgreSQL",
			"mysql": "MySQL", "mariadb": "MariaDB", "sqlite": "SQLite",
			"mongodb": "MongoDB", "mongo": "MongoDB",
			"cassandra": "Cassandra", "dynamodb": "DynamoDB",
			"oracle": "Oracle", "sql server": "SQL Server", "mssql": "SQL Server",
			"cockroachdb": "CockroachDB",
		},
	},
	{
		category: "frontend frameworks",
		vocab: map[string]string{
			"react": "React", "vue": "Vue", "angular": "Angular",
			"svelte": "Svelte", "ember": "Ember", "solidjs": "SolidJS",
			"next.js": "Next.js", "nextjs": "Next.js", "nuxt": "Nuxt",
		},
	},
	{
		category: "backend frameworks",
		vocab: map[string]string{
			"django": "Django", "flask": "Flask", "fastapi": "FastAPI",
			"rails": "Rails", "laravel": "Laravel", "spring": "Spring",
			"express": "Express", "nestjs": "NestJS", "gin": "Gin",
			"fiber": "Fiber", "phoenix": "Phoenix",
		},
	},
	{
		category: "languages",
		vocab: map[string]string{
			"python": "Python", "javascript": "JavaScript", "typescript": "TypeScript",
			"golang": "Go", "go": "Go", "rust": "Rust", "java": "Java",
			"ruby": "Ruby", "php": "PHP", "kotlin": "Kotlin", "swift": "Swift",
			"c#": "C#", "elixir": "Elixir",
		},
	},
	{
		category: "package managers",
		vocab: map[string]string{
			"npm": "npm", "yarn": "Yarn", "pnpm": "pnpm",
			"pip": "pip", "poetry": "Poetry", "pipenv": "Pipenv",
			"composer": "Composer", "bundler": "Bundler", "cargo": "Cargo",
		},
	},
	{
		category: "testing frameworks",
		vocab: map[string]string{
			"jest": "Jest", "mocha": "Mocha", "vitest": "Vitest",
			"pytest": "pytest", "unittest": "unittest", "junit": "JUnit",
			"rspec": "RSpec", "cypress": "Cypress", "playwright": "Playwright",
			"selenium": "Selenium",
		},
	},
	{
		category: "build tools",
		vocab: map[string]string{
			"webpack": "Webpack", "vite": "Vite", "rollup": "Rollup",
			"parcel": "Parcel", "esbuild": "esbuild",
			"gradle": "Gradle", "maven": "Maven", "bazel": "Bazel",
		},
	},
}

func init() {
	// Checkers reference their own rule's vocabulary, so they are attached
	// after the table literal is built.
	for i := range ruleTable {
		r := &ruleTable[i]
		switch r.category {
		case "databases":
			r.check = exclusiveChoiceChecker(r, 1, models.SeverityHigh)
		case "languages":
			// A primary plus one secondary language is normal.
			r.check = exclusiveChoiceChecker(r, 2, models.SeverityHigh)
		case "testing frameworks", "build tools":
			r.check = exclusiveChoiceChecker(r, 1, models.SeverityLow)
		default:
			r.check = exclusiveChoiceChecker(r, 1, models.SeverityMedium)
		}
	}
}

// FindConflictCategory determines which category a free-text decision value
// belongs to. Unmatched values are ignored by detection: unknown technologies
// cannot conflict under this framework.
func FindConflictCategory(value string) (string, bool) {
	for _, r := range ruleTable {
		if _, ok := canonicalMatch(r.vocab, value); ok {
			return r.category, true
		}
	}
	return "", false
}

// CheckCategory runs the category's Checker over the given values.
// Unknown categories produce no conflicts.
func CheckCategory(category string, values []string) []models.ConflictInfo {
	for _, r := range ruleTable {
		if r.category == category {
			return r.check(values)
		}
	}
	return nil
}

// Detect partitions decision values by category and runs every Checker.
// The result is ordered by severity descending, then category name ascending,
// and is identical in content and order for identical input.
func Detect(values []string) []models.ConflictInfo {
	byCategory := make(map[string][]string)
	for _, v := range values {
		if category, ok := FindConflictCategory(v); ok {
			byCategory[category] = append(byCategory[category], v)
		}
	}

	var conflicts []models.ConflictInfo
	for _, r := range ruleTable {
		conflicts = append(conflicts, r.check(byCategory[r.category])...)
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		if conflicts[i].Severity != conflicts[j].Severity {
			return conflicts[i].Severity.Rank() > conflicts[j].Severity.Rank()
		}
		return conflicts[i].Category < conflicts[j].Category
	})
	return conflicts
}

// Categories returns the known category names in rule-table order.
func Categories() []string {
	names := make([]string, len(ruleTable))
	for i, r := range ruleTable {
		names[i] = r.category
	}
	return names
}
