package checklist

import (
	"fmt"
	"strings"
)

// FunctionName is the function the assistant must call with its results.
const FunctionName = "return_checklist_results"

// Instructions are attached to every checklist run.
const Instructions = "You MUST use the return_checklist_results function to provide your response. " +
	"Analyze each checklist item individually and call the function with an array of results - " +
	"one for each checklist item. Do not return regular JSON or text responses."

const functionDescription = "MANDATORY function to return structured checklist analysis results. " +
	"You MUST call this function with an array of results - one entry for each checklist item. " +
	"Do NOT provide a single summary."

// BuildPrompt renders the analysis request message.
func BuildPrompt(documentNames, items []string) string {
	var docs, list strings.Builder
	for i, d := range documentNames {
		if i > 0 {
			docs.WriteByte('\n')
		}
		docs.WriteString("- " + d)
	}
	for i, item := range items {
		if i > 0 {
			list.WriteByte('\n')
		}
		fmt.Fprintf(&list, "%d. %s", i+1, item)
	}
	return fmt.Sprintf(promptTemplate, docs.String(), list.String())
}

const promptTemplate = `You are a DPR analysis assistant. Your task is to analyze the specified documents for the given checklist items.

DOCUMENTS TO ANALYZE:
%s

IMPORTANT: The files are attached to this message. Use the file_search tool to access and read the content of these documents.

CHECKLIST ITEMS TO VERIFY (ANALYZE EACH ONE INDIVIDUALLY):
%s

CRITICAL ANALYSIS REQUIREMENTS:
You must analyze EACH checklist item separately and provide individual results. Do NOT provide a single summary.

For EACH checklist item, determine:
- Status: "Yes" if the item is fully covered in the DPR, "No" if not covered at all, "Partial" if partially covered
- Remarks: DETAILED explanations as follows:
  * If "No": "Not covered in the [STATE_NAME] DPR" (replace [STATE_NAME] with actual state like Nagaland, Mizoram, etc.)
  * If "Partial": Brief explanation (40+ words) of what IS covered and what is NOT covered, and why you consider it partial
  * If "Yes": Comprehensive detailed response (100+ words) covering ALL aspects mentioned in the DPR including timelines, costs, specifications, requirements, etc.

MANDATORY FUNCTION CALLING:
- You MUST use the return_checklist_results function to provide your response
- You MUST call this function with an array of results - ONE result for EACH checklist item
- Do NOT return a regular JSON response or text response
- Do NOT provide a single summary - analyze each item individually

EXAMPLE OF EXPECTED OUTPUT:
Call return_checklist_results with an array like:
[
  {
    "item": "Project timeline and milestones",
    "status": "Yes",
    "remarks": "The Nagaland Innovation Hub DPR provides comprehensive timeline details..."
  },
  {
    "item": "Budget allocation and cost breakdown",
    "status": "Partial",
    "remarks": "The document mentions total project cost but lacks detailed breakdown..."
  }
]

Begin your analysis now. Search through the attached documents and call the return_checklist_results function with your findings for EACH checklist item.
`
