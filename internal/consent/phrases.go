package consent

// Phrase lists are matched case-insensitively as substrings.

var strongNegative = []string{
	"do not provide any information",
	"do not provide any details",
	"do not provide any data",
	"not available in the provided documents",
	"not found in the documents",
	"not contain any specific information",
	"no information about",
	"cannot find information",
	"unable to find information",
	"therefore, there is no available information",
	"there is no available information",
}

var strongPositive = []string{
	"according to the documents",
	"based on the dpr",
	"the project includes",
	"the budget allocation",
	"the timeline shows",
	"the implementation plan",
	"the technical specifications",
	"the environmental impact",
	"the cost breakdown",
	"the project details",
	"the infrastructure includes",
	"the development plan",
	"the construction details",
	"the project aims to",
	"the initiative focuses on",
	"the development includes",
	"the construction involves",
	"the implementation involves",
	"the project involves",
	"the development involves",
}

var deflection = []string{
	"the available details primarily focus on",
	"while the documents contain information about",
	"although the documents include details about",
	"the documents provide information about",
	"primarily focus on",
	"the available information relates to",
	"the documents focus on",
	"the information available focuses on",
}

var genericNonAnswer = []string{
	"the documents provided do not contain",
	"no information available",
	"not available in the documents",
	"the documents do not provide",
	"the available information does not include",
}

// keywordTrigger maps case-sensitive markers in the text to the lowercase
// keywords a focused answer is expected to contain.
type keywordTrigger struct {
	markers  []string
	keywords []string
}

var keywordTriggers = []keywordTrigger{
	{markers: []string{"CM", "Chief Minister"}, keywords: []string{"chief minister"}},
	{markers: []string{"thought", "opinion"}, keywords: []string{"thought", "opinion"}},
	{markers: []string{"budget"}, keywords: []string{"budget"}},
	{markers: []string{"timeline"}, keywords: []string{"timeline"}},
}
