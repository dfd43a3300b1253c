package analyzer

import "fmt"

const analysisPrompt = `You are a strict ATS expert and career coach.

Task: analyze the resume below and return STRICTLY valid, COMPLETE JSON (no markdown, no code fences, no comments).

CRITICAL:
- Return the WHOLE JSON object, do not cut it off!
- The object MUST be fully closed (every bracket closed)
- Do not stop halfway, return EVERY field in full

Requirements:
- invent nothing; rely only on the resume text
- keep wording short and practical
- strengths: 3-5 items (short, 5-10 words each)
- improvements: 3 items, each = {title, why, how} (title: 3-5 words, why: 1 sentence, how: 1 sentence)
- missing_keywords: 10-15 keywords/phrases (no duplicates, short)

JSON schema (return the ENTIRE object, all fields required):
{
  "ats_score": 0,
  "summary": "1-2 sentences",
  "strengths": ["...", "...", "..."],
  "improvements": [{"title":"...","why":"...","how":"..."}, {"title":"...","why":"...","how":"..."}, {"title":"...","why":"...","how":"..."}],
  "missing_keywords": ["...", "...", "..."]
}

Resume:
%s

Return ONLY the valid JSON object, with no extra text before or after it. Make sure the object is closed with the final brace }.`

const tailorPrompt = `You are an ATS expert.

Task: match the resume against the job posting and return STRICTLY valid JSON (no markdown).

Requirements:
- invent nothing; do not add experience that is not there
- missing_keywords: only what the resume clearly lacks but the job needs (10-25)
- quick_fixes: 5-8 fast edits (what to change in the text/structure)
- rewritten_bullets: 3 rewritten bullets as {before, after} (before taken from the resume as closely as possible, after is the improved version with metrics/strong verbs, nothing invented)

JSON schema:
{
  "fit_score": 0,
  "missing_keywords": ["..."],
  "quick_fixes": ["..."],
  "rewritten_bullets": [{"before":"...","after":"..."}]
}

Resume:
%s

Job posting:
%s`

const rewritePrompt = `You are a career editor and ATS specialist.

Rewrite the resume with better structure and wording, but:
- do not invent facts, companies, dates or numbers
- keep the resume's language and tone
- make it ATS-friendly: plain text, clear sections, bullet points

Return ONLY the updated resume text (no preamble and no markdown).

Resume:
%s`

func buildAnalysisPrompt(resumeText string) string {
	return fmt.Sprintf(analysisPrompt, resumeText)
}

func buildTailorPrompt(resumeText, jobText string) string {
	return fmt.Sprintf(tailorPrompt, resumeText, jobText)
}

func buildRewritePrompt(resumeText string) string {
	return fmt.Sprintf(rewritePrompt, resumeText)
}
