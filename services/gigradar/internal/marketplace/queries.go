package marketplace

const (
	searchAlias  = "visitorJobSearch"
	detailsAlias = "gql-query-get-visitor-job-details"
	graphQLPath  = "/api/graphql/v1"
)

const searchQuery = `query VisitorJobSearch($requestVariables: VisitorJobSearchV1Request!) {
  search {
    universalSearchNuxt {
      visitorJobSearchV1(request: $requestVariables) {
        paging { total offset count }
        results {
          id
          title
          description
          relevanceEncoded
          ontologySkills { uid parentSkillUid prefLabel prettyName: prefLabel freeText highlighted }
          jobTile {
            job {
              id
              ciphertext: cipherText
              jobType
              weeklyRetainerBudget
              hourlyBudgetMax
              hourlyBudgetMin
              hourlyEngagementType
              contractorTier
              sourcingTimestamp
              createTime
              publishTime
              enterpriseJob
              personsToHire
              premium
              totalApplicants
              fixedPriceAmount { isoCurrencyCode amount }
              fixedPriceEngagementDuration { id rid label weeks }
            }
          }
        }
      }
    }
  }
}`

const detailsQuery = `query JobPubDetailsQuery($id: ID!) {
  jobPubDetails(id: $id) {
    opening {
      status
      postedOn
      publishTime
      workload
      contractorTier
      description
      info { id title type ciphertext createdOn }
      budget { amount currencyCode }
      extendedBudgetInfo { hourlyBudgetMin hourlyBudgetMax hourlyBudgetType }
      clientActivity { totalApplicants totalHired totalInvitedToInterview numberOfPositionsToHire }
      sandsData {
        ontologySkills { id prefLabel }
        additionalSkills { id prefLabel }
      }
      category { name }
      categoryGroup { name }
      engagementDuration { label weeks }
    }
    buyer {
      location { city country countryTimezone }
      stats {
        totalAssignments
        feedbackCount
        score
        totalJobsWithHires
        totalCharges { amount currencyCode }
        hoursCount
      }
    }
    qualifications {
      minJobSuccessScore
      minOdeskHours
      prefEnglishSkill
      risingTalent
      shouldHavePortfolio
    }
  }
}`

const typenameQuery = `query { __typename }`

type graphQLRequest struct {
	Query     string      `json:"query"`
	Variables interface{} `json:"variables,omitempty"`
}

type searchVariables struct {
	RequestVariables searchRequest `json:"requestVariables"`
}

type searchRequest struct {
	UserQuery string `json:"userQuery"`
	Sort      string `json:"sort"`
	Highlight bool   `json:"highlight"`
	Paging    paging `json:"paging"`
}

type paging struct {
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

type detailsVariables struct {
	ID string `json:"id"`
}
