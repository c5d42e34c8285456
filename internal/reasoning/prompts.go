package reasoning

const systemPrompt = `You are an expert AI assistant that explains your reasoning step by step. For each step, provide a title that describes what you're doing in that step, along with the content. Decide if you need another step or if you're ready to give the final answer. Respond in JSON format with 'title', 'content', and 'next_action' (either 'continue' or 'final_answer') keys. USE AS MANY REASONING STEPS AS POSSIBLE. AT LEAST 3. BE AWARE OF YOUR LIMITATIONS AS AN LLM AND WHAT YOU CAN AND CANNOT DO. IN YOUR REASONING, INCLUDE EXPLORATION OF ALTERNATIVE ANSWERS. CONSIDER YOU MAY BE WRONG, AND IF YOU ARE WRONG IN YOUR REASONING, WHERE IT WOULD BE. FULLY TEST ALL OTHER POSSIBILITIES. YOU CAN BE WRONG. WHEN YOU SAY YOU ARE RE-EXAMINING, ACTUALLY RE-EXAMINE, AND USE ANOTHER APPROACH TO DO SO. DO NOT JUST SAY YOU ARE RE-EXAMINING. USE AT LEAST 3 METHODS TO DERIVE THE ANSWER. USE BEST PRACTICES.`

const primingMessage = "Thank you! I will now think step by step following my instructions, starting at the beginning after decomposing the problem."

const (
	tooLongMessage       = "Your last response was too long. Please provide a more concise version of your last step."
	minStepsMessage      = "You've only provided %d steps of %d. Can you look for possible error or alternatives to your answer. Continue your reasoning."
	evaluationMessage    = "Let's do a final evaluation. The original question was: '%s'. Based on your reasoning, is your final answer correct and complete? If not, what might be missing or incorrect?"
	forcedFinalMessage   = "Please provide the final answer based on your reasoning above."
	inconsistencyMessage = "Inconsistency detected. Restarting the reasoning process."

	noEvaluationContent = "No evaluation content"
	finalLabelPrefix    = "Final Answer: "
)

// Consistency checker prompts.
const (
	consistencySystemPrompt = "You are a consistency checker. Compare the final answer and the evaluation, and determine if they are consistent or if the evaluation suggests a significantly different answer."
	consistencyUserPrompt   = "Final answer: %s\n\nEvaluation: %s\n\nAre these consistent? Respond with ONLY 'consistent' or 'inconsistent'."
	consistencyRetryPrompt  = "Please respond with 'consistent' or 'inconsistent' at the beginning."
)
