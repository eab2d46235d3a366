package chat

import (
	"fmt"
	"os"

	"github.com/benvon/assistant-chat/internal/services/related"
	"gopkg.in/yaml.v3"
)

// ProfileLabels are the user-facing field names in the identity summary
type ProfileLabels struct {
	Profession         string `yaml:"profession"`
	Expertise          string `yaml:"expertise"`
	Interests          string `yaml:"interests"`
	KnowledgeLevel     string `yaml:"knowledge_level"`
	CommunicationStyle string `yaml:"communication_style"`
	Goals              string `yaml:"goals"`
	RecentTopics       string `yaml:"recent_topics"`
	Personality        string `yaml:"personality"`
	Context            string `yaml:"context"`
	Footer             string `yaml:"footer"`
}

// Phrases is the locale-specific text used by the identity shortcut and template questions
type Phrases struct {
	IdentityPatterns []string      `yaml:"identity_patterns"`
	NotEnoughData    string        `yaml:"not_enough_data"`
	SummaryTitle     string        `yaml:"summary_title"`
	ListSeparator    string        `yaml:"list_separator"`
	Labels           ProfileLabels `yaml:"profile_labels"`

	related.Templates `yaml:",inline"`
}

// DefaultPhrases returns the built-in Chinese phrasing with a few English patterns
func DefaultPhrases() Phrases {
	return Phrases{
		IdentityPatterns: []string{
			`我是谁`,
			`你(了解|知道|认识|记得)我(吗|么|嘛|什么)`,
			`你(觉得|认为|眼中)我是(一个)?(什么样|怎样|怎么样)的人`,
			`(说说|介绍|总结)(一下)?你对我的(了解|印象|认识)`,
			`(?i)\bwho am i\b`,
			`(?i)\bwhat do you know about me\b`,
		},
		NotEnoughData: "我还没有足够的信息来了解你。多和我聊聊你的工作、兴趣和目标吧，我会逐渐记住这些内容。",
		SummaryTitle:  "我对你的了解",
		ListSeparator: "、",
		Labels: ProfileLabels{
			Profession:         "职业",
			Expertise:          "专业领域",
			Interests:          "兴趣爱好",
			KnowledgeLevel:     "知识水平",
			CommunicationStyle: "沟通风格",
			Goals:              "目标",
			RecentTopics:       "最近关注",
			Personality:        "性格特点",
			Context:            "背景",
			Footer:             "基于 %d 次对话分析，最后更新于 %s",
		},
		Templates: related.DefaultTemplates(),
	}
}

// LoadPhrases reads a YAML phrase file. Sections missing from the file keep their defaults.
func LoadPhrases(path string) (Phrases, error) {
	defaults := DefaultPhrases()
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return defaults, fmt.Errorf("failed to read phrases file: %w", err)
	}

	var p Phrases
	if err := yaml.Unmarshal(data, &p); err != nil {
		return defaults, fmt.Errorf("failed to parse phrases file: %w", err)
	}

	if len(p.IdentityPatterns) == 0 {
		p.IdentityPatterns = defaults.IdentityPatterns
	}
	if p.NotEnoughData == "" {
		p.NotEnoughData = defaults.NotEnoughData
	}
	if p.SummaryTitle == "" {
		p.SummaryTitle = defaults.SummaryTitle
	}
	if p.ListSeparator == "" {
		p.ListSeparator = defaults.ListSeparator
	}
	if p.Labels == (ProfileLabels{}) {
		p.Labels = defaults.Labels
	}
	if len(p.Keywords) == 0 && len(p.General) == 0 {
		p.Templates = defaults.Templates
	} else if len(p.General) == 0 {
		p.General = defaults.General
	}

	if _, err := NewIdentityMatcher(p.IdentityPatterns); err != nil {
		return defaults, err
	}
	return p, nil
}
