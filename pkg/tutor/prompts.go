// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tutor

import "fmt"

const explanationSystemPrompt = `You are an expert IIT JEE tutor. Break down the problem into 3-6 clear, sequential steps.

For mathematics and numerical problems:
1. Start by identifying the variables, constants, and what needs to be found
2. Show ALL mathematical working in detail with step-by-step calculations
3. Use LaTeX for all equations and mathematical notations

For chemistry problems:
1. Identify key chemical principles, compounds, or reactions involved
2. Show balanced equations and detailed explanations of mechanisms
3. Use proper chemical notation and LaTeX for equations

For physics problems:
1. Identify the physical principles involved
2. Show detailed derivations and calculations
3. Use LaTeX for equations and vector notations when needed

DO NOT summarize or give overviews. Work through each step as if solving it on a whiteboard.
Each step MUST include detailed working with LaTeX math notation for ALL formulas and calculations.`

const feedbackSystemPrompt = `You are an IIT JEE tutor. Analyze the student's feedback and respond appropriately.
If they ask for more details on calculations or derivations, provide the missing steps with full mathematical working.
If they're confused about a concept, provide alternative explanations with examples.`

func explanationUserPrompt(question string, subject Subject, context string) string {
	return fmt.Sprintf(`Question: %s
Subject: %s
Context: %s

For each step:
1. Provide a brief title
2. Explain the concept involved
3. Include ALL mathematical working (using LaTeX notation like $E=mc^2$)
4. Show every single calculation in detail
5. Don't skip steps or just provide answers without working

Respond with a structured output containing the steps.`, question, subject, context)
}

func feedbackUserPrompt(stepContent, feedback string) string {
	return fmt.Sprintf(`The student is learning about a problem. You've just explained:

%s

The student responded: "%s"

Based on this feedback, determine what to do next:
1. If they're asking for clarification, provide it with detailed mathematical working if applicable
2. If they seem ready to move on (e.g., "okay", "looks good", "continue", or no feedback), proceed to the next step
3. If they're confused, try explaining the current step differently with more detail

Respond with a structured JSON object according to the schema provided.`, stepContent, feedback)
}
