package related

import (
	"math/rand/v2"
	"sort"
	"strings"
)

// Templates is the keyword lookup used by template mode.
// Keys are matched as lower-case substrings of the user's message.
type Templates struct {
	Keywords map[string][]string `yaml:"keyword_questions"`
	General  []string            `yaml:"general_questions"`
}

// DefaultTemplates returns the built-in keyword and general question lists
func DefaultTemplates() Templates {
	return Templates{
		Keywords: map[string][]string{
			"代码": {
				"这段代码的核心原理是什么？",
				"有没有更简洁的写法？",
				"这段代码如何编写单元测试？",
				"这段代码有哪些性能瓶颈？",
				"如何处理其中的异常情况？",
				"这种写法和其他方案相比如何？",
			},
			"学习": {
				"有什么推荐的学习路径？",
				"初学者最容易犯哪些错误？",
				"如何检验自己的学习效果？",
				"有哪些值得阅读的资料？",
			},
			"工作": {
				"如何提高日常工作效率？",
				"这个问题在团队中怎么推进？",
				"有哪些实用的工具推荐？",
				"如何向上级汇报这件事？",
			},
			"健康": {
				"日常生活中需要注意什么？",
				"有哪些常见的误区？",
				"什么情况下应该就医？",
				"饮食方面有什么建议？",
			},
			"旅行": {
				"最佳的出行季节是什么时候？",
				"有哪些必去的地方？",
				"预算大概需要多少？",
				"当地有什么特色美食？",
			},
			"code": {
				"How would you test this code?",
				"Is there a simpler way to write it?",
				"What are the performance trade-offs?",
				"How should errors be handled here?",
			},
		},
		General: []string{
			"能举一个具体的例子吗？",
			"这背后的原理是什么？",
			"实际应用中需要注意什么？",
			"和类似的方案相比有什么区别？",
			"如果要深入了解，下一步该做什么？",
			"有哪些常见的误解？",
		},
	}
}

// candidates unions every list whose keyword occurs in text, falling back to General
func (t Templates) candidates(text string) []string {
	normalized := strings.ToLower(text)

	keys := make([]string, 0, len(t.Keywords))
	for k := range t.Keywords {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := make(map[string]struct{})
	var out []string
	for _, k := range keys {
		if k == "" || !strings.Contains(normalized, strings.ToLower(k)) {
			continue
		}
		for _, q := range t.Keywords[k] {
			if _, dup := seen[q]; dup {
				continue
			}
			seen[q] = struct{}{}
			out = append(out, q)
		}
	}

	if len(out) == 0 {
		out = append(out, t.General...)
	}
	return out
}

// pick shuffles the candidates for text and returns at most count of them
func (t Templates) pick(text string, count int, shuffle func([]string)) []string {
	c := t.candidates(text)
	shuffle(c)
	if len(c) > count {
		c = c[:count]
	}
	return c
}

func shuffleStrings(s []string) {
	rand.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
}
